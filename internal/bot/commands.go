package bot

import "github.com/bwmarrin/discordgo"

const reportCommandName = "Report message"

func giveawayIDOption() *discordgo.ApplicationCommandOption {
	minID := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "id",
		Description: "Giveaway ID",
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.Finnish: "Arvonnan tunnus",
		},
		Required: true,
		MinValue: &minID,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageGuild)
	manageRoles := int64(discordgo.PermissionManageRoles)
	minOne := 1.0

	return []*discordgo.ApplicationCommand{
		{
			Type: discordgo.MessageApplicationCommand,
			Name: reportCommandName,
			NameLocalizations: &map[discordgo.Locale]string{
				discordgo.Finnish: "Ilmianna viesti",
			},
		},
		{
			Name:                     "giveaway",
			Description:              "Manage giveaways",
			DefaultMemberPermissions: &manageGuild,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.Finnish: "Hallinnoi arvontoja",
			},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start a giveaway",
					DescriptionLocalizations: map[discordgo.Locale]string{
						discordgo.Finnish: "Aloita arvonta",
					},
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "Channel to post the giveaway in",
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "duration",
							Description: "Duration in seconds",
							MinValue:    &minOne,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "winners",
							Description: "Number of winners",
							MinValue:    &minOne,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "prize",
							Description: "What the winners get",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List giveaways",
					DescriptionLocalizations: map[discordgo.Locale]string{
						discordgo.Finnish: "Listaa arvonnat",
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "reroll",
					Description: "Draw new winners",
					Options:     []*discordgo.ApplicationCommandOption{giveawayIDOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "edit",
					Description: "Edit an active giveaway",
					Options: []*discordgo.ApplicationCommandOption{
						giveawayIDOption(),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "field",
							Description: "Field to change",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "duration", Value: "duration"},
								{Name: "winners", Value: "winners"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "value",
							Description: "New duration in seconds from the start, or new winner count",
							Required:    true,
							MinValue:    &minOne,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "end",
					Description: "End a giveaway now",
					Options:     []*discordgo.ApplicationCommandOption{giveawayIDOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "delete",
					Description: "Delete a giveaway",
					Options:     []*discordgo.ApplicationCommandOption{giveawayIDOption()},
				},
			},
		},
		{
			Name:        "poll",
			Description: "Start a vote with up to 5 options",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.Finnish: "Aloita äänestys",
			},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "What is being voted on",
					Required:    true,
					MaxLength:   255,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "options",
					Description: "2 to 5 comma separated options",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Duration in seconds",
					MinValue:    &minOne,
				},
			},
		},
		{
			Name:                     "unsilence",
			Description:              "Lift a silence",
			DefaultMemberPermissions: &manageRoles,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.Finnish: "Poista hiljennys",
			},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to unsilence",
					Required:    true,
				},
			},
		},
		{
			Name:        "activity",
			Description: "Show message activity for a day",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.Finnish: "Näytä päivän viestiaktiivisuus",
			},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "day",
					Description: "Day as YYYY-MM-DD, UTC. Defaults to today",
				},
			},
		},
	}
}

// registerCommands reconciles the guild commands with the definitions: edits known ones,
// creates missing ones and removes the rest.
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()
	appID := b.session.State.User.ID
	guildID := b.cfg.GuildID

	existing, err := b.session.ApplicationCommands(appID, guildID)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok && current.Type == commandType(cmd) {
			if _, err := b.session.ApplicationCommandEdit(appID, guildID, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
	}
	return nil
}

func commandType(cmd *discordgo.ApplicationCommand) discordgo.ApplicationCommandType {
	if cmd.Type == 0 {
		return discordgo.ChatApplicationCommand
	}
	return cmd.Type
}
