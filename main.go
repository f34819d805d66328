package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/hendrywilliam/tether/src/api"
	"github.com/hendrywilliam/tether/src/dispatcher"
	"github.com/hendrywilliam/tether/src/events"
	"github.com/hendrywilliam/tether/src/gateway"
	"github.com/hendrywilliam/tether/src/logger"
	"github.com/hendrywilliam/tether/src/metrics"
	"github.com/hendrywilliam/tether/src/rest"
	"github.com/hendrywilliam/tether/src/server"
	"github.com/hendrywilliam/tether/src/structs"
	"github.com/hendrywilliam/tether/src/utils"
)

var signals = []os.Signal{
	os.Interrupt,
	syscall.SIGINT,
	syscall.SIGTERM,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, statusAddr, logLevel, logFormat string

	flagSet := pflag.NewFlagSet("tether", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.StringVar(&statusAddr, "status-addr", "", "serve /healthz, /status and /metrics on this address (overrides STATUS_ADDRESS)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flagSet.StringVar(&logFormat, "log-format", "", "console or json (overrides LOG_FORMAT)")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	// A missing default .env is fine; the environment may already be set.
	if err := godotenv.Load(envFile); err != nil {
		if flagSet.Changed("env-file") || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := utils.LoadConfiguration()
	if err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	if statusAddr != "" {
		cfg.StatusAddress = statusAddr
	}
	if logLevel != "" {
		if cfg.LogLevel, err = utils.ParseLogLevel(logLevel); err != nil {
			return err
		}
	}
	if logFormat != "" {
		if cfg.LogJSON, err = utils.ParseLogFormat(logFormat); err != nil {
			return err
		}
	}

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	m := metrics.New()
	restClient, err := rest.NewREST(cfg.DiscordURL, cfg.DiscordBotToken, cfg.DiscordRetries,
		rest.WithLogger(log),
		rest.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	if args := flagSet.Args(); len(args) > 0 {
		return runCommand(ctx, args, restClient, cfg.DiscordGuildID, log)
	}

	d := dispatcher.New(log)
	defer d.Close()
	d.Subscribe(logEvent(log))
	if cfg.DiscordGuildID != 0 {
		d.Subscribe(announceGuild(log, api.NewGuildAPI(restClient), cfg.DiscordGuildID))
	}

	session := gateway.NewSession(gateway.SessionArguments{
		BotToken:  cfg.DiscordBotToken,
		Intents:   cfg.DiscordIntents,
		Locator:   api.NewGatewayAPI(restClient),
		Publisher: d,
		Logger:    log,
		Metrics:   m,
	})

	if cfg.StatusAddress != "" {
		srv := server.NewServer(session, m, log)
		go func() {
			if err := srv.StartServer(ctx, cfg.StatusAddress); err != nil {
				log.Error("status server failed", "error", err)
			}
		}()
	}

	err = session.Connect(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	return session.CloseError()
}

func logEvent(log *slog.Logger) dispatcher.Handler {
	return func(_ context.Context, ev events.Event) {
		switch e := ev.(type) {
		case events.Init:
			log.Info("gateway connection initialised")
		case events.Ready:
			log.Info("ready", "user", e.Ready.User.Username, "shard", e.Ready.Shard)
		case events.GuildCreated:
			log.Info("guild created", "guild_id", e.Guild.ID.String(), "channels", len(e.Guild.Channels))
		case events.MessageCreated:
			log.Info("message created", "message_id", e.Message.ID.String(), "content", e.Message.Content)
		case events.MessageUpdated:
			log.Info("message updated", "message_id", e.Message.ID.String())
		case events.MessageDeleted:
			log.Info("message deleted", "message_id", e.Message.ID.String())
		case events.ChannelCreated:
			log.Info("channel created", "channel_id", e.Channel.ID.String(), "name", e.Channel.Name)
		case events.ChannelUpdated:
			log.Info("channel updated", "channel_id", e.Channel.ID.String(), "name", e.Channel.Name)
		case events.ChannelDeleted:
			log.Info("channel deleted", "channel_id", e.Channel.ID.String(), "name", e.Channel.Name)
		}
	}
}

// announceGuild looks the configured guild up once the socket is open.
func announceGuild(log *slog.Logger, guilds *api.GuildAPI, guildID structs.Snowflake) dispatcher.Handler {
	return func(ctx context.Context, ev events.Event) {
		if _, ok := ev.(events.Init); !ok {
			return
		}
		guild, err := guilds.Guild(ctx, guildID)
		if err != nil {
			log.Error("failed to fetch guild", "guild_id", guildID.String(), "error", err)
			return
		}
		name := ""
		if guild.Name != nil {
			name = *guild.Name
		}
		log.Info("guild", "guild_id", guildID.String(), "name", name)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tether connects a bot to the chat gateway and logs the events it receives,
or runs one-shot channel maintenance against a guild.

Configuration comes from the environment (optionally a .env file):
  DISCORD_TOKEN     bot token (required)
  DISCORD_URL       API base url (default https://discord.com)
  DISCORD_RETRIES   attempts per throttled request (default 4)
  DISCORD_INTENTS   bitmask or names, e.g. GUILDS|GUILD_MESSAGES
  DISCORD_GUILD_ID  guild to look up once connected; target of channel commands
  STATUS_ADDRESS    status server address
  LOG_LEVEL         debug, info, warn or error
  LOG_FORMAT        console or json

Usage:
  tether [flags]
  tether [flags] channels <remove|sort|create> ...

Flags:
%s
%s
`, flagSet.FlagUsages(), channelsUsage)
}
