package bot

import "strings"

// Command is a recognised bot command.
type Command int

const (
	CmdUnknown Command = iota
	CmdStart
	CmdNews
	CmdNFT
	CmdCrypto
	CmdGifts
	CmdTech
	CmdStats
	CmdHelp
	CmdPublish
)

var commandNames = map[string]Command{
	"/start":   CmdStart,
	"/news":    CmdNews,
	"/nft":     CmdNFT,
	"/crypto":  CmdCrypto,
	"/gifts":   CmdGifts,
	"/tech":    CmdTech,
	"/stats":   CmdStats,
	"/help":    CmdHelp,
	"/publish": CmdPublish,
}

// ParseCommand reads the leading command of a message. ok is false when the
// text is not a command at all; unrecognised commands return CmdUnknown.
// A "@botname" suffix and any arguments are ignored.
func ParseCommand(text string) (cmd Command, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return CmdUnknown, false
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if c, found := commandNames[strings.ToLower(name)]; found {
		return c, true
	}
	return CmdUnknown, true
}
