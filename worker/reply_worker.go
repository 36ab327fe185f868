package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/services"
	"sakanly/store"
	"sakanly/utils"
)

const replyExcerptLimit = 500

// ReplyWorker polls each organization's inbox over IMAP and stops
// stop-on-reply runs when a known lead writes back.
type ReplyWorker struct {
	store    store.Store
	runs     *services.RunService
	activity *services.ActivityRecorder
	cipher   *utils.Cipher
	logger   *logrus.Entry
	interval time.Duration
}

func NewReplyWorker(st store.Store, runs *services.RunService, activity *services.ActivityRecorder, cipher *utils.Cipher, logger *logrus.Logger, interval time.Duration) *ReplyWorker {
	return &ReplyWorker{
		store:    st,
		runs:     runs,
		activity: activity,
		cipher:   cipher,
		logger:   logger.WithField("component", "reply_worker"),
		interval: interval,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	rw.logger.WithField("interval", rw.interval.String()).Info("reply worker started")

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reply worker shutting down")
			return
		case <-ticker.C:
			rw.pollAll(ctx)
		}
	}
}

func (rw *ReplyWorker) pollAll(ctx context.Context) {
	providers, err := rw.store.ActiveIMAPProviders(ctx)
	if err != nil {
		rw.logger.WithError(err).Error("failed to load IMAP providers")
		return
	}

	for _, provider := range providers {
		if err := rw.pollProvider(ctx, &provider); err != nil {
			rw.logger.WithError(err).WithField("org_id", provider.OrgID).Warn("inbox poll failed")
		}
	}
}

func (rw *ReplyWorker) pollProvider(ctx context.Context, provider *models.ChannelProvider) error {
	password, err := rw.cipher.Decrypt(provider.IMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	var imapClient *client.Client
	imapAddr := fmt.Sprintf("%s:%d", provider.IMAPHost, provider.IMAPPort)

	switch strings.ToLower(provider.IMAPEncryption) {
	case "ssl":
		imapClient, err = client.DialTLS(imapAddr, &tls.Config{ServerName: provider.IMAPHost})
	case "starttls":
		imapClient, err = client.Dial(imapAddr)
		if err == nil {
			err = imapClient.StartTLS(&tls.Config{ServerName: provider.IMAPHost})
		}
	default:
		imapClient, err = client.Dial(imapAddr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(provider.IMAPUsername, password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	mailbox := "INBOX"
	if provider.IMAPMailbox != "" {
		mailbox = provider.IMAPMailbox
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	processed := new(imap.SeqSet)
	for msg := range messages {
		if err := rw.processMessage(ctx, provider.OrgID, msg); err != nil {
			rw.logger.WithError(err).WithField("seq_num", msg.SeqNum).Warn("failed to process message")
			continue
		}
		processed.AddNum(msg.SeqNum)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %w", err)
	}

	if !processed.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := imapClient.Store(processed, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			rw.logger.WithError(err).Warn("failed to mark messages seen")
		}
	}
	return nil
}

func (rw *ReplyWorker) processMessage(ctx context.Context, orgID uint, msg *imap.Message) error {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return fmt.Errorf("message has no sender envelope")
	}
	from := strings.ToLower(msg.Envelope.From[0].Address())

	lead, err := rw.store.FindLeadByEmail(ctx, orgID, from)
	if err != nil {
		// Mail from unknown addresses is not a reply; skip quietly.
		return nil
	}

	excerpt := rw.extractExcerpt(msg)
	rw.activity.Record(orgID, lead.ID, "replied", excerpt)

	if err := rw.runs.HandleLeadReply(ctx, orgID, lead.ID); err != nil {
		return fmt.Errorf("failed to handle reply for lead %d: %w", lead.ID, err)
	}

	rw.logger.WithFields(logrus.Fields{"lead_id": lead.ID, "from": from}).Info("lead reply detected")
	return nil
}

// extractExcerpt pulls the first text/plain part, truncated for the activity
// trail. Parsing failures fall back to the subject line.
func (rw *ReplyWorker) extractExcerpt(msg *imap.Message) string {
	section := &imap.BodySectionName{Peek: true}
	literal := msg.GetBody(section)
	if literal == nil {
		for _, l := range msg.Body {
			literal = l
			break
		}
	}
	if literal == nil {
		return msg.Envelope.Subject
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return msg.Envelope.Subject
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			break
		}
		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if !strings.Contains(contentType, "text/plain") {
				continue
			}
			b, err := io.ReadAll(p.Body)
			if err != nil {
				break
			}
			text := strings.TrimSpace(string(b))
			if len(text) > replyExcerptLimit {
				text = text[:replyExcerptLimit]
			}
			return text
		}
	}
	return msg.Envelope.Subject
}
