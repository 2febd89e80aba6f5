package assets

import (
	"embed"
	"strings"
)

//go:embed banner.txt
var bannerFS embed.FS

// BannerString heads the CLI help.
var BannerString string

func init() {
	bytes, err := bannerFS.ReadFile("banner.txt")
	if err != nil {
		// the banner is embedded at build time, a miss is a build bug
		panic(err)
	}

	BannerString = strings.TrimRight(string(bytes), "\n")
}
