// Command relaybot runs a Telegram bot that relays messages to a chain of
// language models and replies with the first usable answer.
package main

import (
	"github.com/alecthomas/kong"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// Globals are flags shared by every command
type Globals struct {
	Config   string `short:"c" help:"Config file (.json, .toml or .yaml). Default: ./relaybot.* then ~/.relaybot/relaybot.*" type:"path"`
	EnvFile  string `name:"env-file" default:".env" help:"Dotenv file read before the environment. Missing is fine."`
	LogLevel string `name:"log-level" help:"Log level override: trace, debug, info, warn, error."`
}

type CLI struct {
	Globals

	Run        RunCmd     `cmd:"" default:"1" help:"Start the bot and poll Telegram until interrupted."`
	Ask        AskCmd     `cmd:"" help:"Send one message through the model chain and print the reply."`
	Check      CheckCmd   `cmd:"" help:"Verify the bot token and report candidate models the endpoint no longer lists."`
	ShowConfig ConfigCmd  `cmd:"" name:"config" help:"Print the effective configuration with secrets masked."`
	Version    VersionCmd `cmd:"" help:"Print the version."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("relaybot"),
		kong.Description("Telegram bot that tries several AI models until one answers."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
