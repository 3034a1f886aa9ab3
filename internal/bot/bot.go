// Package bot hosts the Discord front end: it parses commands, enqueues
// download jobs and relays worker progress back to the submitting channel.
package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"hentai-fetcher/internal/coordinator"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/models"
)

// HistoryChecker answers whether a gallery was already downloaded. Satisfied
// by *database.DB.
type HistoryChecker interface {
	IsDownloaded(galleryID string) bool
}

// Bot wraps the Discord session and the command handlers.
type Bot struct {
	session *discordgo.Session
	coord   *coordinator.Coordinator
	history HistoryChecker
	prefix  string
}

// New creates the bot and registers its handlers. Call Open to connect.
func New(cfg models.Config, coord *coordinator.Coordinator, history HistoryChecker) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		coord:   coord,
		history: history,
		prefix:  cfg.CommandPrefix,
	}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Open connects to the Discord gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord connection: %w", err)
	}
	log.Infof("Discord bot connected; command prefix %q", b.prefix)
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

// --- worker.Notifier implementation ---

func (b *Bot) SendMessage(channelID, content string) (string, error) {
	m, err := b.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (b *Bot) EditMessage(channelID, messageID, content string) error {
	_, err := b.session.ChannelMessageEdit(channelID, messageID, content)
	return err
}

func (b *Bot) SendFile(channelID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening attachment %s: %w", path, err)
	}
	defer f.Close()

	_, err = b.session.ChannelFileSend(channelID, filepath.Base(path), f)
	return err
}

// --- command handling ---

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}

	args := strings.TrimSpace(strings.TrimPrefix(m.Content, b.prefix))
	if args == "" {
		b.reply(m.ChannelID, b.usage())
		return
	}

	fields := strings.Fields(args)
	switch strings.ToLower(fields[0]) {
	case "cancel":
		b.handleCancel(m.ChannelID, fields[1:])
	case "queue", "status":
		b.handleQueue(m.ChannelID)
	case "help":
		b.reply(m.ChannelID, b.usage())
	case "force":
		b.handleDownload(m.ChannelID, strings.Join(fields[1:], " "), true)
	default:
		b.handleDownload(m.ChannelID, args, false)
	}
}

// handleDownload resolves the targets, filters already-downloaded galleries
// and enqueues the rest, creating a batch record when more than one survives.
func (b *Bot) handleDownload(channelID, input string, force bool) {
	targets := helpers.ResolveTargets(input)
	if len(targets) == 0 {
		b.reply(channelID, "No valid gallery URLs or ids found in that message.")
		return
	}

	var jobs []models.Job
	var skipped []string
	for _, target := range targets {
		id := helpers.GalleryIDFromTarget(target)
		if !force && id != "" && b.history.IsDownloaded(id) {
			skipped = append(skipped, "#"+id)
			continue
		}
		jobs = append(jobs, models.Job{Target: target, ChannelID: channelID, Force: force})
	}

	if len(skipped) > 0 {
		b.reply(channelID, fmt.Sprintf("Already downloaded, skipping: %s (use `%s force ...` to re-download)",
			strings.Join(skipped, ", "), b.prefix))
	}
	if len(jobs) == 0 {
		return
	}

	if len(jobs) > 1 {
		batchID := helpers.NewBatchID()
		memberIDs := make([]string, 0, len(jobs))
		for i := range jobs {
			jobs[i].BatchID = batchID
			memberIDs = append(memberIDs, helpers.GalleryIDFromTarget(jobs[i].Target))
		}
		b.coord.Batches.Create(batchID, len(jobs), channelID, memberIDs)
		b.reply(channelID, fmt.Sprintf("Queued %d downloads.", len(jobs)))
	}

	for _, job := range jobs {
		b.coord.Queue.Enqueue(job)
		log.Infof("Enqueued download job for %s", job.Target)
	}
}

// handleCancel requests cancellation for each given gallery id or URL.
func (b *Bot) handleCancel(channelID string, args []string) {
	if len(args) == 0 {
		b.reply(channelID, fmt.Sprintf("Usage: `%s cancel <gallery id or URL>`", b.prefix))
		return
	}

	for _, arg := range args {
		id := helpers.GalleryIDFromTarget(arg)
		if id == "" {
			id = strings.TrimPrefix(arg, "#")
		}
		if b.coord.Cancels.RequestCancel(id) {
			b.reply(channelID, fmt.Sprintf("Cancellation requested for #%s", id))
		} else {
			b.reply(channelID, fmt.Sprintf("No active download found for #%s", id))
		}
	}
}

func (b *Bot) handleQueue(channelID string) {
	queued := b.coord.Queue.Len()
	active := b.coord.Cancels.Len()
	b.reply(channelID, fmt.Sprintf("Active downloads: %d\nQueued: %d", active, queued))
}

func (b *Bot) usage() string {
	return strings.Join([]string{
		"Commands:",
		fmt.Sprintf("`%s <url or id> [more ...]` - queue downloads", b.prefix),
		fmt.Sprintf("`%s force <url or id> [more ...]` - re-download even if already on record", b.prefix),
		fmt.Sprintf("`%s cancel <id>` - cancel a queued or running download", b.prefix),
		fmt.Sprintf("`%s queue` - show queue status", b.prefix),
	}, "\n")
}

func (b *Bot) reply(channelID, content string) {
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		log.WithError(err).Warnf("Failed to send message to channel %s", channelID)
	}
}
