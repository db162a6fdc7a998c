package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/zulandar/beartank/internal/config"
	"github.com/zulandar/beartank/internal/db"
	"github.com/zulandar/beartank/internal/telegraph"
	"github.com/zulandar/beartank/internal/telegraph/discord"
	"github.com/zulandar/beartank/internal/telegraph/slack"
	"github.com/zulandar/beartank/internal/unlock"
	"gorm.io/gorm"
)

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	connect := db.Connect
	if verbose {
		connect = db.ConnectVerbose
	}
	gormDB, err := connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, gormDB, nil
}

// resolverFor picks the unlock policy the class is configured for.
func resolverFor(cfg *config.Config) unlock.Resolver {
	if cfg.Workflow.ExplicitUnlocksOnly {
		return unlock.ExplicitOnly()
	}
	return unlock.Default()
}

// connectBroadcast connects every chat platform with a bot token. A platform
// that fails to connect is reported and skipped.
func connectBroadcast(ctx context.Context, cfg *config.Config, out io.Writer) *telegraph.Broadcaster {
	b := telegraph.NewBroadcaster()

	if sc := cfg.Broadcast.Slack; sc.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{BotToken: sc.BotToken, ChannelID: sc.Channel})
		if err == nil {
			err = a.Connect(ctx)
		}
		if err != nil {
			fmt.Fprintf(out, "Slack disabled: %v\n", err)
		} else {
			b.Add("slack", a)
			fmt.Fprintf(out, "Slack connected (channel %s)\n", sc.Channel)
		}
	}

	if dc := cfg.Broadcast.Discord; dc.BotToken != "" {
		a, err := discord.New(discord.AdapterOpts{BotToken: dc.BotToken, ChannelID: dc.Channel})
		if err == nil {
			err = a.Connect(ctx)
		}
		if err != nil {
			fmt.Fprintf(out, "Discord disabled: %v\n", err)
		} else {
			b.Add("discord", a)
			fmt.Fprintf(out, "Discord connected (channel %s)\n", dc.Channel)
		}
	}

	return b
}

func newTable(out io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}
