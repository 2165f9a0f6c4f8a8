package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"hustled/internal/business"
	"hustled/internal/economy"
	"hustled/internal/roulette"
	"hustled/internal/workflow"
)

func (b *Bot) dispatch(ctx context.Context, m *discordgo.MessageCreate, cmd string, args []string) {
	switch cmd {
	case "bal", "balance":
		b.cmdBalance(ctx, m, args)
	case "top", "leaderboard":
		b.cmdLeaderboard(m)
	case "work":
		b.cmdWork(ctx, m)
	case "rob":
		b.cmdRob(ctx, m, args)
	case "roulette":
		b.cmdRoulette(ctx, m, args)
	case "create_business":
		b.cmdCreateBusiness(ctx, m, args)
	case "business":
		b.cmdBusiness(ctx, m, args)
	case "manage_business":
		b.cmdManageBusiness(m)
	case "upgrade_business":
		b.cmdUpgradeBusiness(ctx, m)
	case "add_money":
		b.cmdAddMoney(ctx, m, args)
	case "help":
		b.cmdHelp(m)
	}
}

func (b *Bot) cmdBalance(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	actorID := m.Author.ID
	if len(args) > 0 {
		actorID = parseMention(args[0])
	}
	acct, err := b.economy.GetOrCreate(ctx, actorID)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	b.reply(m, "**Wallet:** $%d | **Bank:** $%d | **Net worth:** $%d",
		acct.Balance, acct.Bank, acct.NetWorth())
}

func (b *Bot) cmdLeaderboard(m *discordgo.MessageCreate) {
	rows := b.economy.Leaderboard(10)
	if len(rows) == 0 {
		b.reply(m, "Nobody on the board yet. Try `%swork`.", b.cfg.CommandPrefix)
		return
	}
	var sb strings.Builder
	sb.WriteString("**Richest players**\n")
	for i, row := range rows {
		fmt.Fprintf(&sb, "%d. <@%s> | $%d\n", i+1, row.ActorID, row.NetWorth)
	}
	b.reply(m, "%s", sb.String())
}

func (b *Bot) cmdWork(ctx context.Context, m *discordgo.MessageCreate) {
	result, err := b.economy.Work(ctx, m.Author.ID)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	msg := fmt.Sprintf("%s You earned **$%d**.", result.Scenario, result.Payout)
	if len(result.Bonuses) > 0 {
		msg += " Bonuses: " + strings.Join(result.Bonuses, ", ") + "."
	}
	b.reply(m, "%s New balance: $%d", msg, result.Balance)
}

func (b *Bot) cmdRob(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m, "Usage: `%srob @target`", b.cfg.CommandPrefix)
		return
	}
	result, err := b.economy.Rob(ctx, m.Author.ID, parseMention(args[0]))
	if err != nil {
		b.replyErr(m, err)
		return
	}
	if result.Success {
		b.reply(m, "You got away with **$%d**! Balance: $%d", result.Amount, result.RobberBalance)
		return
	}
	b.reply(m, "Caught! You paid a **$%d** fine. Balance: $%d", result.Amount, result.RobberBalance)
}

func (b *Bot) cmdRoulette(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) < 2 {
		b.reply(m, "Usage: `%sroulette <red|black> <amount>`", b.cfg.CommandPrefix)
		return
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		b.reply(m, "Amount must be a number.")
		return
	}
	bet, err := b.roulette.PlaceBet(ctx, m.Author.ID, args[0], amount)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	b.reply(m, "Bet placed: **$%d on %s**. The wheel spins in %s.",
		bet.Amount, bet.Color, time.Until(bet.ResolveAt).Round(time.Second))
}

func (b *Bot) cmdCreateBusiness(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m, "Usage: `%screate_business <name> [description]`", b.cfg.CommandPrefix)
		return
	}
	name, description := parseCreateArgs(args)
	biz, err := b.registry.Create(ctx, m.Author.ID, m.Author.Username, name, description)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	b.reply(m, "**%s** is open for business! Creation fee: $%d. You can hire up to %d employees.",
		biz.Name, business.CreationFee, biz.MaxEmployees)
}

func (b *Bot) cmdBusiness(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m, "Usage: `%sbusiness list` or `%sbusiness apply <name>`",
			b.cfg.CommandPrefix, b.cfg.CommandPrefix)
		return
	}
	switch strings.ToLower(args[0]) {
	case "list":
		b.cmdBusinessList(m)
	case "apply":
		if len(args) < 2 {
			b.reply(m, "Usage: `%sbusiness apply <name>`", b.cfg.CommandPrefix)
			return
		}
		b.cmdBusinessApply(ctx, m, strings.Join(args[1:], " "))
	default:
		b.reply(m, "Unknown subcommand %q.", args[0])
	}
}

func (b *Bot) cmdBusinessList(m *discordgo.MessageCreate) {
	all := b.registry.List()
	if len(all) == 0 {
		b.reply(m, "No businesses yet. Start one with `%screate_business <name>`.", b.cfg.CommandPrefix)
		return
	}
	var sb strings.Builder
	sb.WriteString("**Businesses**\n")
	for _, biz := range all {
		status := "hiring"
		if !biz.Hiring() {
			status = "full"
		}
		fmt.Fprintf(&sb, "- **%s** (owner %s) | %d/%d employees, %s\n",
			biz.Name, biz.OwnerName, len(biz.Employees), biz.MaxEmployees, status)
	}
	b.reply(m, "%s", sb.String())
}

func (b *Bot) cmdBusinessApply(ctx context.Context, m *discordgo.MessageCreate, name string) {
	prompter := &messagePrompter{bot: b, channelID: m.ChannelID, authorID: m.Author.ID}
	app, err := b.registry.Apply(ctx, m.Author.ID, m.Author.Username, name, prompter)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	b.reply(m, "Application to **%s** submitted. The owner will review it shortly.", app.BusinessName)
}

func (b *Bot) cmdManageBusiness(m *discordgo.MessageCreate) {
	biz, ok := b.registry.OwnedBy(m.Author.ID)
	if !ok {
		b.replyErr(m, business.ErrNoBusiness)
		return
	}
	apps, err := b.registry.Applications(m.Author.ID)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** | level %d, %d/%d employees, revenue $%d\n",
		biz.Name, biz.Level, len(biz.Employees), biz.MaxEmployees, biz.Revenue)
	if len(biz.Employees) > 0 {
		sb.WriteString("Employees:\n")
		for id, emp := range biz.Employees {
			fmt.Fprintf(&sb, "- %s (<@%s>), %d work sessions\n", emp.Name, id, emp.TotalWorkSessions)
		}
	}
	if len(apps) > 0 {
		sb.WriteString("Pending applications:\n")
		for _, app := range apps {
			fmt.Fprintf(&sb, "- `%s` from %s: %s\n", app.ID, app.ApplicantName, app.Reason)
		}
	}
	b.reply(m, "%s", sb.String())
}

func (b *Bot) cmdUpgradeBusiness(ctx context.Context, m *discordgo.MessageCreate) {
	biz, ok := b.registry.OwnedBy(m.Author.ID)
	if !ok {
		b.replyErr(m, business.ErrNoBusiness)
		return
	}
	var sb strings.Builder
	sb.WriteString("**Available upgrades** (reply with a number, or `cancel`):\n")
	for i, u := range business.Upgrades {
		owned := ""
		if biz.Upgrades[u.Key] {
			owned = " (owned)"
		}
		fmt.Fprintf(&sb, "%d. **%s** | $%d. %s%s\n", i+1, u.Name, u.Cost, u.Description, owned)
	}
	b.reply(m, "%s", sb.String())

	waitCtx, cancel := context.WithTimeout(ctx, business.UpgradePromptTimeout)
	defer cancel()
	selection, err := b.awaitReply(waitCtx, m.ChannelID, m.Author.ID)
	if err != nil {
		b.reply(m, "Upgrade selection timed out.")
		return
	}

	upgrade, updated, err := b.registry.PurchaseUpgrade(ctx, m.Author.ID, selection)
	if err != nil {
		if errors.Is(err, business.ErrInvalidSelection) && strings.EqualFold(strings.TrimSpace(selection), "cancel") {
			b.reply(m, "Upgrade cancelled.")
			return
		}
		b.replyErr(m, err)
		return
	}
	b.reply(m, "Purchased **%s** for $%d. %s is now level %d.",
		upgrade.Name, upgrade.Cost, updated.Name, updated.Level)
}

func (b *Bot) cmdAddMoney(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if !b.isAdmin(m) {
		b.reply(m, "You do not have permission to do that.")
		return
	}
	if len(args) < 2 {
		b.reply(m, "Usage: `%sadd_money @target <amount>`", b.cfg.CommandPrefix)
		return
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		b.reply(m, "Amount must be a number.")
		return
	}
	targetID := parseMention(args[0])
	acct, err := b.economy.Credit(ctx, targetID, amount)
	if err != nil {
		b.replyErr(m, err)
		return
	}
	b.reply(m, "Added $%d to <@%s>. New balance: $%d", amount, targetID, acct.Balance)
}

func (b *Bot) cmdHelp(m *discordgo.MessageCreate) {
	p := b.cfg.CommandPrefix
	b.reply(m, strings.Join([]string{
		"**Commands**",
		fmt.Sprintf("`%sbal [@user]` check a wallet", p),
		fmt.Sprintf("`%stop` richest players", p),
		fmt.Sprintf("`%swork` earn money (hourly)", p),
		fmt.Sprintf("`%srob @target` attempt a robbery (hourly)", p),
		fmt.Sprintf("`%sroulette <red|black> <amount>` bet on the wheel", p),
		fmt.Sprintf("`%screate_business <name> [description]` start a business ($%d)", p, business.CreationFee),
		fmt.Sprintf("`%sbusiness list|apply <name>` browse or apply for jobs", p),
		fmt.Sprintf("`%smanage_business` review your business and applicants", p),
		fmt.Sprintf("`%supgrade_business` buy upgrades", p),
	}, "\n"))
}

func (b *Bot) replyErr(m *discordgo.MessageCreate, err error) {
	var cooldown *economy.CooldownError
	switch {
	case errors.As(err, &cooldown):
		b.reply(m, "Slow down! Try again in %s.", time.Until(cooldown.NextEligible).Round(time.Second))
	case errors.Is(err, economy.ErrTargetInsufficientFunds):
		b.reply(m, "They are too broke to be worth robbing.")
	case errors.Is(err, economy.ErrInsufficientFunds):
		b.reply(m, "You cannot afford that.")
	case errors.Is(err, economy.ErrSelfTarget):
		b.reply(m, "You cannot rob yourself.")
	case errors.Is(err, business.ErrAlreadyOwnsBusiness):
		b.reply(m, "You already own a business.")
	case errors.Is(err, business.ErrNoBusiness):
		b.reply(m, "You do not own a business. Start one with `%screate_business <name>`.", b.cfg.CommandPrefix)
	case errors.Is(err, business.ErrNotFound):
		b.reply(m, "No business by that name.")
	case errors.Is(err, business.ErrBusinessFull):
		b.reply(m, "That business is not hiring right now.")
	case errors.Is(err, business.ErrAlreadyEmployed):
		b.reply(m, "You already have a job there.")
	case errors.Is(err, business.ErrUpgradeOwned):
		b.reply(m, "You already own that upgrade.")
	case errors.Is(err, business.ErrInvalidSelection):
		b.reply(m, "That is not one of the options.")
	case errors.Is(err, roulette.ErrBetAlreadyActive):
		b.reply(m, "You already have a bet on the wheel.")
	case errors.Is(err, roulette.ErrMinimumBetNotMet):
		b.reply(m, "Minimum bet is $%d.", roulette.MinimumBet)
	case errors.Is(err, roulette.ErrInvalidColor):
		b.reply(m, "Pick red or black.")
	case errors.Is(err, workflow.ErrTimeout):
		b.reply(m, "You took too long to answer. Application cancelled.")
	default:
		b.log.Error("command failed", "err", err)
		b.reply(m, "Something went wrong. Try again later.")
	}
}

// parseCreateArgs treats the first token as the business name and the
// remainder as its description.
func parseCreateArgs(args []string) (name, description string) {
	if len(args) == 0 {
		return "", ""
	}
	return args[0], strings.Join(args[1:], " ")
}

func parseMention(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	return strings.TrimSuffix(s, ">")
}
