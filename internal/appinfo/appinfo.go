package appinfo

const Name = "meetbot"

// Version is set at release time with
//
//	-ldflags "-X meetbot/internal/appinfo.Version=0.2.0"
var Version = "0.1.0"

func version() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// Display is the banner printed by "meetbot version".
func Display() string { return Name + " v" + version() }

// UserAgent identifies the bot on outbound HTTP requests.
func UserAgent() string { return Name + "/" + version() }
