package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MPhong03/tdtu-admission-client/internal/api"
	"github.com/MPhong03/tdtu-admission-client/internal/model/chat"
	"github.com/MPhong03/tdtu-admission-client/internal/realtime"
)

// User-facing strings, kept verbatim from the production client.
const (
	sendFailedAnswer = "Đã có lỗi xảy ra, vui lòng thử lại sau."
	noAnswerText     = "Xin lỗi, hiện tại tôi không có câu trả lời cho câu hỏi này."

	defaultChatName = "Cuộc trò chuyện"

	sendErrorToast       = "Không thể gửi tin nhắn. Vui lòng thử lại."
	historyErrorToast    = "Không thể tải lịch sử chat"
	createChatErrorToast = "Không thể tạo đoạn chat mới"
	feedbackErrorToast   = "Có lỗi khi xử lý phản hồi. Vui lòng thử lại."
	feedbackThanksToast  = "Cảm ơn bạn đã gửi phản hồi!"
	feedbackUpdatedToast = "Cập nhật phản hồi thành công!"
)

var (
	// ErrNoChat is returned by operations that need an active conversation.
	ErrNoChat = errors.New("no active chat")
	// ErrExchangeInFlight rejects a second send while one is outstanding.
	ErrExchangeInFlight = errors.New("an exchange is already in flight")
	// ErrEmptyQuestion is returned for blank input.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Notifier surfaces recoverable conditions to the user, the terminal
// equivalent of the original toast notifications.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// ChannelFactory opens a realtime channel scoped to one conversation.
type ChannelFactory func(chatID string, h realtime.Handler) (io.Closer, error)

// IdentityStore persists the server-issued visitor id.
type IdentityStore interface {
	VisitorID() string
	SetVisitorID(id string) error
}

// API is the slice of the HTTP collaborator the controller consumes.
type API interface {
	History(ctx context.Context, chatID string, page, size int, visitorID string) (*chat.HistoryPage, error)
	SendQuestion(ctx context.Context, question, chatID, visitorID string) (*api.SendResult, error)
	CreateChat(ctx context.Context, name, visitorID string) (*chat.Summary, error)
	CreateFeedback(ctx context.Context, historyID string, in api.FeedbackInput) (*chat.Feedback, error)
	UpdateFeedback(ctx context.Context, feedbackID string, in api.FeedbackInput) (*chat.Feedback, error)
}

// Options configures a Controller.
type Options struct {
	API      API
	Identity IdentityStore
	Channels ChannelFactory
	Notifier Notifier
	Logger   *zap.Logger

	// TypeInterval is the typewriter tick; zero means 20ms.
	TypeInterval time.Duration
	// PageSize is the history page size; zero means 5.
	PageSize int
	// OnNewChat fires when the server assigns a conversation id, either
	// through explicit creation or lazily on the first exchange.
	OnNewChat func(chatID string)

	now func() time.Time // test hook
}

// Controller owns one conversation's synchronization state: the transcript,
// the pagination cursor, the single pending exchange and the single
// playback slot. All mutation is read-modify-write under one mutex; HTTP
// completions, realtime events and typewriter ticks re-enter through it
// rather than acting on captured snapshots.
type Controller struct {
	api       API
	identity  IdentityStore
	channels  ChannelFactory
	notify    Notifier
	log       *zap.Logger
	pageSize  int
	onNewChat func(string)
	now       func() time.Time

	writer *typewriter
	titles *titleCache

	mu      sync.Mutex
	state   State
	loading bool // pagination in-flight guard
	epoch   int  // bumped on every reset; stale completions compare against it
	channel io.Closer
	closed  bool

	updates chan Update
}

// New assembles a Controller in the pre-conversation state.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 5
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	c := &Controller{
		api:       opts.API,
		identity:  opts.Identity,
		channels:  opts.Channels,
		notify:    opts.Notifier,
		log:       opts.Logger,
		pageSize:  opts.PageSize,
		onNewChat: opts.OnNewChat,
		now:       opts.now,
		titles:    newTitleCache(),
		updates:   make(chan Update, 16),
	}
	c.state = State{Name: defaultChatName, HasMore: true}
	c.writer = newTypewriter(opts.TypeInterval, c.applyFrame)
	return c
}

// Updates coalesces change notifications for the presentation. The channel
// is never closed; consumers select against their own shutdown signal.
func (c *Controller) Updates() <-chan Update { return c.updates }

func (c *Controller) publish(u Update) {
	select {
	case c.updates <- u:
	default:
	}
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Items = make([]chat.Item, len(c.state.Items))
	copy(s.Items, c.state.Items)
	return s
}

// SetChat switches the controller to chatID, resetting all session state
// when the id actually changes: the stale realtime channel is torn down
// first, then the playback timer, and any in-flight fetch is discarded on
// arrival. An empty id parks the controller in the pre-conversation state.
func (c *Controller) SetChat(chatID string) {
	c.mu.Lock()
	if c.state.ChatID == chatID {
		c.mu.Unlock()
		return
	}
	old := c.channel
	c.channel = nil
	c.resetLocked(chatID)
	c.mu.Unlock()

	// The stale channel must stop delivering before a new one opens for
	// the next id.
	if old != nil {
		_ = old.Close()
	}
	c.writer.cancel()

	if chatID != "" {
		c.openChannel(chatID)
	}
	c.publish(Update{})
}

func (c *Controller) resetLocked(chatID string) {
	name := defaultChatName
	if cached, ok := c.titles.Get(chatID); ok {
		name = cached
	}
	c.state = State{ChatID: chatID, Name: name, HasMore: true}
	c.loading = false
	c.epoch++
}

func (c *Controller) openChannel(chatID string) {
	if c.channels == nil {
		return
	}

	ch, err := c.channels(chatID, &channelHandler{c: c, chatID: chatID})
	if err != nil {
		c.log.Warn("open realtime channel failed", zap.String("chatId", chatID), zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed || c.state.ChatID != chatID {
		c.mu.Unlock()
		_ = ch.Close()
		return
	}
	c.channel = ch
	c.mu.Unlock()
}

// channelHandler routes realtime events into the controller. It remembers
// the chat id it was subscribed under so events from a superseded channel
// are dropped even if teardown races delivery.
type channelHandler struct {
	c      *Controller
	chatID string
}

func (h *channelHandler) HandleBroadcast(b realtime.Broadcast) { h.c.handleBroadcast(h.chatID, b) }
func (h *channelHandler) HandleAck(a realtime.Ack)             { h.c.handleAck(h.chatID, a) }

// Send issues a question through the request/response path, tracking it as
// the single pending exchange. It returns once the server reply has been
// reconciled; answer playback continues in the background. Callers
// serialize user input while an exchange is outstanding.
func (c *Controller) Send(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.state.Phase != PhaseIdle {
		c.mu.Unlock()
		return ErrExchangeInFlight
	}
	tempID := chat.NewTempID(c.now())
	c.state.Items = appendItem(c.state.Items, chat.Item{
		ID:        tempID,
		Question:  question,
		CreatedAt: c.now().UTC(),
	})
	c.state.PendingID = tempID
	c.state.Phase = PhasePending
	chatID := c.state.ChatID
	epoch := c.epoch
	c.mu.Unlock()
	c.publish(Update{ScrollToBottom: true})

	res, err := c.api.SendQuestion(ctx, question, chatID, c.visitorID())
	if err != nil {
		c.mu.Lock()
		if c.epoch != epoch {
			// The session was reset while the request was in flight; the
			// failed exchange belongs to the old transcript.
			c.mu.Unlock()
			c.log.Debug("discarding stale send failure", zap.String("chatId", chatID))
			return err
		}
		c.failPendingLocked(sendFailedAnswer)
		c.mu.Unlock()

		if appErr, ok := api.AsAppError(err); ok && appErr.Message != "" {
			c.notify.Error(appErr.Message)
		} else {
			c.notify.Error(sendErrorToast)
		}
		c.publish(Update{})
		return err
	}

	c.reconcile(epoch, res.HistoryID, res.Answer, res.ChatID, res.VisitorID)
	return nil
}

// StartConversation creates a conversation explicitly and sends its first
// question through the usual pending-exchange path.
func (c *Controller) StartConversation(ctx context.Context, name, firstQuestion string) (string, error) {
	summary, err := c.api.CreateChat(ctx, name, c.visitorID())
	if err != nil {
		if appErr, ok := api.AsAppError(err); ok && appErr.Message != "" {
			c.notify.Error(appErr.Message)
		} else {
			c.notify.Error(createChatErrorToast)
		}
		return "", err
	}

	c.storeVisitorID(summary.VisitorID)
	c.titles.Set(summary.ID, summary.Name)

	c.SetChat(summary.ID)
	if c.onNewChat != nil {
		c.onNewChat(summary.ID)
	}

	if strings.TrimSpace(firstQuestion) == "" {
		return summary.ID, nil
	}
	return summary.ID, c.Send(ctx, firstQuestion)
}

// reconcile applies a server reply to the pending exchange: promote a newly
// assigned conversation id, rewrite the temporary id across the transcript,
// persist the visitor id, then either start playback or finish with the
// no-answer placeholder. Both reply legs, the HTTP response and the
// realtime ack, come through here so the staleness rules cannot drift
// apart. epoch is the session epoch the exchange was issued under; a reply
// resolving after a reset is discarded.
func (c *Controller) reconcile(epoch int, historyID, answer, newChatID, visitorID string) {
	c.storeVisitorID(visitorID)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Debug("discarding stale reply", zap.String("historyId", historyID))
		return
	}
	if c.state.Phase != PhasePending {
		c.mu.Unlock()
		c.log.Warn("reconcile with no pending exchange", zap.String("historyId", historyID))
		return
	}

	if historyID != "" && historyID != c.state.PendingID {
		rewriteID(c.state.Items, c.state.PendingID, historyID)
		c.state.PendingID = historyID
	}

	var (
		oldChannel io.Closer
		promoted   bool
	)
	if newChatID != "" && newChatID != c.state.ChatID {
		// The conversation was created lazily on this exchange. Adopt the
		// id without clearing: the in-progress exchange belongs to it.
		promoted = true
		c.state.ChatID = newChatID
		oldChannel = c.channel
		c.channel = nil
	}

	playID := ""
	if answer != "" {
		c.state.Phase = PhasePlaying
		c.state.TypingBuffer = ""
		playID = c.state.PendingID
	} else {
		setAnswer(c.state.Items, c.state.PendingID, noAnswerText)
		c.state.PendingID = ""
		c.state.TypingBuffer = ""
		c.state.Phase = PhaseIdle
	}
	c.mu.Unlock()

	if promoted {
		if oldChannel != nil {
			// When the reply arrived over the channel itself, Close would
			// wait on the read loop currently delivering it. Tear down off
			// this goroutine; the handler's subscribed-id check already
			// drops anything the old channel still emits.
			go func(ch io.Closer) { _ = ch.Close() }(oldChannel)
		}
		c.openChannel(newChatID)
		if c.onNewChat != nil {
			c.onNewChat(newChatID)
		}
	}

	if playID != "" {
		c.publish(Update{ScrollToBottom: true})
		c.writer.play(playID, answer)
	} else {
		c.publish(Update{})
	}
}

// failPendingLocked finalizes the pending item with text and returns the
// session to Idle. The item stays visible with the text standing in for
// the answer; nothing is ever removed from the transcript.
func (c *Controller) failPendingLocked(text string) {
	if c.state.PendingID != "" {
		setAnswer(c.state.Items, c.state.PendingID, text)
	}
	c.state.PendingID = ""
	c.state.TypingBuffer = ""
	c.state.Phase = PhaseIdle
}

// applyFrame lands one typewriter tick. State may have moved on since the
// tick was scheduled (reset, supersession), so the frame is re-checked
// against current state under the lock and dropped when stale.
func (c *Controller) applyFrame(targetID, prefix string, done bool) {
	c.mu.Lock()
	if c.state.Phase != PhasePlaying || c.state.PendingID != targetID {
		c.mu.Unlock()
		return
	}
	setAnswer(c.state.Items, targetID, prefix)
	c.state.TypingBuffer = prefix
	if done {
		c.state.TypingBuffer = ""
		c.state.PendingID = ""
		c.state.Phase = PhaseIdle
	}
	c.mu.Unlock()
	c.publish(Update{ScrollToBottom: true})
}

func (c *Controller) handleBroadcast(subscribed string, b realtime.Broadcast) {
	c.mu.Lock()
	if b.ChatID != c.state.ChatID || subscribed != c.state.ChatID {
		c.mu.Unlock()
		c.log.Debug("discarding broadcast for inactive chat",
			zap.String("eventChatId", b.ChatID), zap.String("active", subscribed))
		return
	}
	if c.state.Phase != PhaseIdle {
		c.mu.Unlock()
		c.log.Warn("discarding broadcast during in-flight exchange", zap.String("chatId", b.ChatID))
		return
	}

	tempID := chat.NewTempID(c.now())
	c.state.Items = appendItem(c.state.Items, chat.Item{
		ID:        tempID,
		Question:  b.Question,
		CreatedAt: c.now().UTC(),
	})
	c.state.PendingID = tempID

	if b.Answer == "" {
		setAnswer(c.state.Items, tempID, noAnswerText)
		c.state.PendingID = ""
		c.mu.Unlock()
		c.publish(Update{ScrollToBottom: true})
		return
	}

	c.state.Phase = PhasePlaying
	c.state.TypingBuffer = ""
	c.mu.Unlock()

	c.publish(Update{ScrollToBottom: true})
	c.writer.play(tempID, b.Answer)
}

func (c *Controller) handleAck(subscribed string, a realtime.Ack) {
	c.mu.Lock()
	if subscribed != c.state.ChatID {
		c.mu.Unlock()
		c.log.Debug("discarding ack from superseded channel", zap.String("channelChatId", subscribed))
		return
	}
	if c.state.Phase != PhasePending {
		c.mu.Unlock()
		c.log.Warn("ack received with no pending exchange", zap.Int("code", a.Code))
		return
	}

	if a.Code != realtime.StatusSuccess {
		c.failPendingLocked(sendFailedAnswer)
		c.mu.Unlock()

		msg := a.Message
		if msg == "" {
			msg = sendErrorToast
		}
		c.notify.Error(msg)
		c.publish(Update{})
		return
	}
	epoch := c.epoch
	c.mu.Unlock()

	c.reconcile(epoch, a.Data.HistoryID, a.Data.Answer, a.Data.ChatID, a.Data.VisitorID)
}

// SubmitFeedback creates or updates the rating on an answered item and
// mirrors the result into the transcript.
func (c *Controller) SubmitFeedback(ctx context.Context, historyID string, rating int, comment, feedbackID string) error {
	in := api.FeedbackInput{Rating: rating, Comment: comment}

	var (
		fb  *chat.Feedback
		err error
	)
	if feedbackID != "" {
		fb, err = c.api.UpdateFeedback(ctx, feedbackID, in)
	} else {
		fb, err = c.api.CreateFeedback(ctx, historyID, in)
	}
	if err != nil {
		if appErr, ok := api.AsAppError(err); ok && appErr.Message != "" {
			c.notify.Error(appErr.Message)
		} else {
			c.notify.Error(feedbackErrorToast)
		}
		return err
	}

	now := c.now().UTC()
	record := chat.Feedback{ID: fb.ID, Rating: rating, Comment: comment, CreatedAt: now, UpdatedAt: now}
	if record.ID == "" {
		record.ID = feedbackID
	}

	c.mu.Lock()
	if item := findItem(c.state.Items, historyID); item != nil {
		if feedbackID != "" && item.Feedback != nil && !item.Feedback.CreatedAt.IsZero() {
			record.CreatedAt = item.Feedback.CreatedAt
		}
		item.Feedback = &record
		item.IsFeedback = true
	}
	c.mu.Unlock()

	if feedbackID != "" {
		c.notify.Success(feedbackUpdatedToast)
	} else {
		c.notify.Success(feedbackThanksToast)
	}
	c.publish(Update{})
	return nil
}

func (c *Controller) visitorID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.VisitorID()
}

func (c *Controller) storeVisitorID(id string) {
	if id == "" || c.identity == nil {
		return
	}
	if err := c.identity.SetVisitorID(id); err != nil {
		c.log.Warn("persist visitor id failed", zap.Error(err))
	}
}

// Close tears the session down: realtime channel first, then playback.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ch := c.channel
	c.channel = nil
	c.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	c.writer.cancel()
}
