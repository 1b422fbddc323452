package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	cli "github.com/urfave/cli/v2"
)

func adminClient(cctx *cli.Context) *AdminClient {
	return NewAdminClient(cctx.String("admin-host"), cctx.String("admin-token"))
}

func printRule(r RuleView) {
	fmt.Println(r.Description)
}

var rulesCmd = &cli.Command{
	Name:  "rules",
	Usage: "view and edit automod rules of a running daemon",
	Subcommands: []*cli.Command{
		{
			Name:      "list",
			Usage:     "list the rules configured for a guild",
			ArgsUsage: "<guild>",
			Action: func(cctx *cli.Context) error {
				guildID := cctx.Args().First()
				if guildID == "" {
					return fmt.Errorf("need to provide guild ID as an argument")
				}
				rules, err := adminClient(cctx).ListRules(cctx.Context, guildID)
				if err != nil {
					return err
				}
				if len(rules) == 0 {
					fmt.Println("no automod rules configured")
					return nil
				}
				for _, r := range rules {
					printRule(r)
				}
				return nil
			},
		},
		{
			Name:      "add",
			Usage:     "add a rule to a guild",
			ArgsUsage: "<guild> <kind> <punishment> <limit> <window-seconds> [params...]",
			Action: func(cctx *cli.Context) error {
				args := cctx.Args().Slice()
				if len(args) < 5 {
					return fmt.Errorf("expected at least 5 arguments: guild, kind, punishment, strike limit, window seconds")
				}
				limit, err := strconv.Atoi(args[3])
				if err != nil {
					return fmt.Errorf("strike limit must be a number: %w", err)
				}
				window, err := strconv.Atoi(args[4])
				if err != nil {
					return fmt.Errorf("window must be a number of seconds: %w", err)
				}
				rule, err := adminClient(cctx).AddRule(cctx.Context, args[0], AddRuleRequest{
					Kind:       args[1],
					Punishment: args[2],
					Limit:      limit,
					Window:     window,
					Params:     args[5:],
				})
				if err != nil {
					return err
				}
				fmt.Printf("added rule: ")
				printRule(*rule)
				return nil
			},
		},
		{
			Name:      "delete",
			Usage:     "delete a guild's rule by ID",
			ArgsUsage: "<guild> <rule-id>",
			Action: func(cctx *cli.Context) error {
				if cctx.Args().Len() != 2 {
					return fmt.Errorf("expected guild ID and rule ID as arguments")
				}
				id, err := strconv.Atoi(cctx.Args().Get(1))
				if err != nil {
					return fmt.Errorf("rule ID must be a number: %w", err)
				}
				rule, err := adminClient(cctx).DeleteRule(cctx.Context, cctx.Args().First(), id)
				if errors.Is(err, errNotFound) {
					fmt.Printf("no rule with ID %d\n", id)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("deleted rule: ")
				printRule(*rule)
				return nil
			},
		},
		{
			Name:  "kinds",
			Usage: "list the supported rule kinds",
			Action: func(cctx *cli.Context) error {
				kinds, err := adminClient(cctx).Kinds(cctx.Context)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(kinds))
				for k := range kinds {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("%s\t%s\n", k, kinds[k])
				}
				return nil
			},
		},
	},
}

func printSettings(s *SettingsView) {
	fmt.Printf("announce prefix:  %q\n", s.AnnouncePrefix)
	fmt.Printf("silence triggers: %s\n", strings.Join(s.SilenceTriggers, ", "))
	fmt.Printf("roleban role:     %s\n", s.RolebanRoleID)
	fmt.Printf("modlog channel:   %s\n", s.ModLogChannelID)
	fmt.Printf("dehoist:          %t (characters %q, prepend %q)\n", s.DehoistEnabled, s.HoistCharacters, s.DehoistPrepend)
}

var settingsCmd = &cli.Command{
	Name:  "settings",
	Usage: "view and edit per-guild automod settings",
	Subcommands: []*cli.Command{
		{
			Name:      "show",
			ArgsUsage: "<guild>",
			Action: func(cctx *cli.Context) error {
				guildID := cctx.Args().First()
				if guildID == "" {
					return fmt.Errorf("need to provide guild ID as an argument")
				}
				settings, err := adminClient(cctx).GetSettings(cctx.Context, guildID)
				if err != nil {
					return err
				}
				printSettings(settings)
				return nil
			},
		},
		{
			Name:      "set",
			Usage:     "update settings; only the flags given are changed",
			ArgsUsage: "<guild>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "announce-prefix"},
				&cli.StringSliceFlag{Name: "silence-trigger", Usage: "may be repeated; replaces the existing list"},
				&cli.StringFlag{Name: "roleban-role"},
				&cli.StringFlag{Name: "modlog-channel"},
				&cli.BoolFlag{Name: "dehoist"},
				&cli.StringFlag{Name: "hoist-characters"},
				&cli.StringFlag{Name: "dehoist-prepend"},
			},
			Action: func(cctx *cli.Context) error {
				guildID := cctx.Args().First()
				if guildID == "" {
					return fmt.Errorf("need to provide guild ID as an argument")
				}
				ac := adminClient(cctx)
				settings, err := ac.GetSettings(cctx.Context, guildID)
				if err != nil {
					return err
				}
				if cctx.IsSet("announce-prefix") {
					settings.AnnouncePrefix = cctx.String("announce-prefix")
				}
				if cctx.IsSet("silence-trigger") {
					settings.SilenceTriggers = cctx.StringSlice("silence-trigger")
				}
				if cctx.IsSet("roleban-role") {
					settings.RolebanRoleID = cctx.String("roleban-role")
				}
				if cctx.IsSet("modlog-channel") {
					settings.ModLogChannelID = cctx.String("modlog-channel")
				}
				if cctx.IsSet("dehoist") {
					settings.DehoistEnabled = cctx.Bool("dehoist")
				}
				if cctx.IsSet("hoist-characters") {
					settings.HoistCharacters = cctx.String("hoist-characters")
				}
				if cctx.IsSet("dehoist-prepend") {
					settings.DehoistPrepend = cctx.String("dehoist-prepend")
				}
				updated, err := ac.PutSettings(cctx.Context, guildID, *settings)
				if err != nil {
					return err
				}
				printSettings(updated)
				return nil
			},
		},
	},
}

var silenceCmd = &cli.Command{
	Name:  "silence",
	Usage: "inspect and reset announcement silence counters",
	Subcommands: []*cli.Command{
		{
			Name:      "show",
			Usage:     "show the counter for a channel, or all non-zero counters",
			ArgsUsage: "[channel]",
			Action: func(cctx *cli.Context) error {
				ac := adminClient(cctx)
				if ch := cctx.Args().First(); ch != "" {
					sv, err := ac.GetSilence(cctx.Context, ch)
					if err != nil {
						return err
					}
					fmt.Printf("%s\t%d\n", sv.ChannelID, sv.Count)
					return nil
				}
				all, err := ac.ListSilence(cctx.Context)
				if err != nil {
					return err
				}
				sort.Slice(all, func(i, j int) bool { return all[i].ChannelID < all[j].ChannelID })
				for _, sv := range all {
					fmt.Printf("%s\t%d\n", sv.ChannelID, sv.Count)
				}
				return nil
			},
		},
		{
			Name:      "clear",
			Usage:     "reset a channel's counter to zero",
			ArgsUsage: "<channel>",
			Action: func(cctx *cli.Context) error {
				ch := cctx.Args().First()
				if ch == "" {
					return fmt.Errorf("need to provide channel ID as an argument")
				}
				sv, err := adminClient(cctx).ClearSilence(cctx.Context, ch)
				if err != nil {
					return err
				}
				fmt.Printf("cleared %s (was %d)\n", sv.ChannelID, sv.Count)
				return nil
			},
		},
	},
}

var whisperCmd = &cli.Command{
	Name:  "whisper",
	Usage: "manage pending whisper restrictions",
	Subcommands: []*cli.Command{
		{
			Name:      "restore",
			Usage:     "lift a whisper restriction before its hold expires",
			ArgsUsage: "<channel> <user>",
			Action: func(cctx *cli.Context) error {
				if cctx.Args().Len() != 2 {
					return fmt.Errorf("expected channel ID and user ID as arguments")
				}
				restored, err := adminClient(cctx).RestoreWhisper(cctx.Context, cctx.Args().Get(0), cctx.Args().Get(1))
				if err != nil {
					return err
				}
				if !restored {
					fmt.Println("no pending whisper restriction")
				} else {
					fmt.Println("restored")
				}
				return nil
			},
		},
	},
}

var dehoistCmd = &cli.Command{
	Name:      "dehoist",
	Usage:     "dehoist members of a guild now, or every hoisted member when none are named",
	ArgsUsage: "<guild> [member...]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "force", Usage: "rename named members even if their name isn't hoisted"},
		&cli.StringFlag{Name: "hoist-characters", Usage: "overrides the guild setting"},
		&cli.StringFlag{Name: "prepend", Usage: "overrides the guild setting"},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return fmt.Errorf("expected guild ID as argument")
		}
		req := DehoistRequest{
			Members:         cctx.Args().Tail(),
			Force:           cctx.Bool("force"),
			HoistCharacters: cctx.String("hoist-characters"),
			Prepend:         cctx.String("prepend"),
		}
		res, err := adminClient(cctx).Dehoist(cctx.Context, cctx.Args().First(), req)
		if err != nil {
			return err
		}
		fmt.Printf("dehoisted %d members, failed %d\n", res.Dehoisted, res.Failed)
		return nil
	},
}
