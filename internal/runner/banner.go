package runner

import (
	"github.com/Synerdyn/netscan/pkg/version"
	"github.com/projectdiscovery/gologger"
)

const banner = `
                __
   ____  ___  / /_______________ _____
  / __ \/ _ \/ __/ ___/ ___/ __ '/ __ \
 / / / /  __/ /_(__  ) /__/ /_/ / / / /
/_/ /_/\___/\__/____/\___/\__,_/_/ /_/
`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s\n", au.Cyan(banner))
	gologger.Print().Msgf("\t\tnetscan %s\n\n", version.GetVersion())
}
