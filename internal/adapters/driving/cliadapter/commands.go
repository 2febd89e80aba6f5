package cliadapter

import (
	"errors"
	"fmt"
	"persistor/internal/assets"
	"persistor/internal/core/domain"
	"persistor/internal/core/service/persistence"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the persistor command tree. Flags are bound to cfg,
// so they override whatever the environment set.
func (h *Handler) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "persistor",
		Short: "Store JSON records in local files",
		Long: assets.BannerString + `
Create, read, update and remove JSON records kept either in a single JSON
array file (LocalFile) or as one {id}.json file per record (MultiFile).

Settings come from PERSISTOR_* environment variables or a .env file, and the
flags below override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			svc, err := h.factory(h.cfg)
			if err != nil {
				return h.handleError(err)
			}
			h.svc = svc
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&h.cfg.Type, "type", h.cfg.Type, `storage type, "LocalFile" or "MultiFile"`)
	flags.StringVar(&h.cfg.FilePath, "file", h.cfg.FilePath, "collection file for LocalFile")
	flags.StringVar(&h.cfg.Dir, "dir", h.cfg.Dir, "record directory for MultiFile")

	root.AddCommand(
		h.newCreateCommand(),
		h.newGetCommand(),
		h.newListCommand(),
		h.newUpdateCommand(),
		h.newRemoveCommand(),
		h.newWatchCommand(),
	)

	return root
}

func (h *Handler) newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [record]",
		Short: "Create a record and print its id",
		Long:  "Create a record from a JSON object given as an argument or piped on stdin. Any id in it is replaced.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return h.handleError(err)
			}

			id, err := h.svc.CreateJSON(cmd.Context(), raw)
			if err != nil {
				return h.handleError(err)
			}

			h.logger.Debug("record created", "id", id)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
}

func (h *Handler) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return h.handleError(err)
			}

			record, err := h.svc.Get(cmd.Context(), id)
			if err != nil {
				return h.handleError(err)
			}

			return writeJSON(cmd.OutOrStdout(), record)
		},
	}
}

func (h *Handler) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print every record",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := h.svc.GetAll(cmd.Context())
			if err != nil {
				return h.handleError(err)
			}

			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
}

func (h *Handler) newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update [record]",
		Short: "Replace the record with the same id",
		Long:  `Replace a whole record. The JSON object, given as an argument or piped on stdin, must carry the "id" of the record to replace.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return h.handleError(err)
			}

			record, err := domain.ParseRecord(raw)
			if err != nil {
				return h.handleError(clientError("invalid record: %v", err))
			}

			// "2" addresses record 2
			if s, ok := record[domain.IDField].(string); ok {
				if id, err := domain.ParseID(s); err == nil {
					record.SetID(id)
				}
			}

			if err := h.svc.Update(cmd.Context(), record); err != nil {
				return h.handleError(err)
			}

			h.logger.Debug("record updated", "id", record[domain.IDField])
			return nil
		},
	}
}

func (h *Handler) newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove one record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return h.handleError(err)
			}

			if err := h.svc.Remove(cmd.Context(), id); err != nil {
				return h.handleError(err)
			}

			h.logger.Debug("record removed", "id", id)
			return nil
		},
	}
}

func (h *Handler) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the collection now and after every change on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			printAll := func() error {
				records, err := h.svc.GetAll(ctx)
				if err != nil {
					return err
				}
				return writeJSON(out, records)
			}

			if err := h.svc.Watch(ctx, printAll); err != nil {
				return h.handleError(err)
			}

			// an absent collection is fine here, it shows up once created
			if err := printAll(); err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return h.handleError(err)
			}

			<-ctx.Done()
			h.logger.Info("watch stopped")
			return nil
		},
	}
}
