package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MPhong03/tdtu-admission-client/internal/api"
	"github.com/MPhong03/tdtu-admission-client/internal/config"
	"github.com/MPhong03/tdtu-admission-client/internal/identity"
	"github.com/MPhong03/tdtu-admission-client/internal/realtime"
	"github.com/MPhong03/tdtu-admission-client/internal/session"
	"github.com/MPhong03/tdtu-admission-client/pkg/logger"
)

func main() {
	chatID := flag.String("chat", "", "resume an existing conversation by id")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Log.FilePath, cfg.Log.Production)
	defer zlog.Sync()

	statePath := cfg.Chat.StatePath
	if statePath == "" {
		statePath, err = identity.DefaultPath()
		if err != nil {
			log.Fatalf("failed to resolve visitor state path: %v", err)
		}
	}
	store, err := identity.NewFileStore(statePath)
	if err != nil {
		log.Fatalf("failed to open visitor state: %v", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)

	ctrl := session.New(session.Options{
		API:      client,
		Identity: store,
		Channels: func(id string, h realtime.Handler) (io.Closer, error) {
			return realtime.Open(cfg.Realtime.URL, id, h, cfg.Realtime.HandshakeTimeout, zlog), nil
		},
		Notifier:     terminalNotifier{},
		Logger:       zlog,
		TypeInterval: cfg.Chat.TypeInterval,
		PageSize:     cfg.Chat.PageSize,
		OnNewChat: func(id string) {
			fmt.Fprintf(os.Stderr, "» đã tạo cuộc trò chuyện %s\n", id)
		},
	})
	defer ctrl.Close()

	go renderLoop(ctx, ctrl)

	if *chatID != "" {
		ctrl.SetChat(*chatID)
		if err := ctrl.LoadInitial(ctx); err != nil {
			zlog.Warn("load history failed", zap.Error(err))
		} else {
			printTranscript(ctrl.Snapshot())
		}
	}

	repl(ctx, ctrl)
}

// terminalNotifier plays the role of the toast layer: recoverable problems
// go to stderr so they never interleave with the streamed answer on stdout.
type terminalNotifier struct{}

func (terminalNotifier) Success(msg string) { fmt.Fprintf(os.Stderr, "✓ %s\n", msg) }
func (terminalNotifier) Error(msg string)   { fmt.Fprintf(os.Stderr, "✗ %s\n", msg) }

// renderLoop streams answer playback to stdout. Each update carries no
// payload; the loop re-reads a snapshot and prints whatever suffix of the
// typing buffer it has not shown yet.
func renderLoop(ctx context.Context, ctrl *session.Controller) {
	var (
		shown    string
		playing  string
		mustIdle bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Updates():
		}

		s := ctrl.Snapshot()
		switch s.Phase {
		case session.PhasePlaying:
			if s.PendingID != playing {
				playing = s.PendingID
				shown = ""
			}
			if strings.HasPrefix(s.TypingBuffer, shown) {
				fmt.Print(s.TypingBuffer[len(shown):])
			} else {
				fmt.Print(s.TypingBuffer)
			}
			shown = s.TypingBuffer
			mustIdle = true
		case session.PhaseIdle:
			if mustIdle {
				// Playback just finished; the final frame may have landed
				// after the buffer was cleared, so print the remainder of
				// the completed answer.
				if answer, ok := lastAnswer(s); ok && strings.HasPrefix(answer, shown) {
					fmt.Print(answer[len(shown):])
				}
				fmt.Println()
				mustIdle = false
			}
			playing = ""
			shown = ""
		}
	}
}

func lastAnswer(s session.State) (string, bool) {
	if len(s.Items) == 0 {
		return "", false
	}
	return s.Items[len(s.Items)-1].Answer, true
}

func repl(ctx context.Context, ctrl *session.Controller) {
	fmt.Fprintln(os.Stderr, "Gõ câu hỏi và nhấn Enter. Lệnh: /more, /history, /feedback <id> <điểm> [nhận xét], /quit")

	sc := bufio.NewScanner(os.Stdin)
	for prompt(); sc.Scan(); prompt() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/more":
			if err := ctrl.LoadMore(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
				continue
			}
			printTranscript(ctrl.Snapshot())
		case line == "/history":
			if err := ctrl.LoadInitial(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
				continue
			}
			printTranscript(ctrl.Snapshot())
		case strings.HasPrefix(line, "/feedback"):
			submitFeedback(ctx, ctrl, line)
		default:
			ask(ctx, ctrl, line)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func prompt() { fmt.Fprint(os.Stderr, "> ") }

func ask(ctx context.Context, ctrl *session.Controller, question string) {
	var err error
	if ctrl.Snapshot().ChatID == "" {
		_, err = ctrl.StartConversation(ctx, question, question)
	} else {
		err = ctrl.Send(ctx, question)
	}
	switch {
	case errors.Is(err, session.ErrExchangeInFlight):
		fmt.Fprintln(os.Stderr, "✗ Vui lòng chờ câu trả lời trước đó hoàn tất.")
	case err != nil:
		// The notifier already surfaced the message.
	}

	waitIdle(ctx, ctrl)
}

// waitIdle blocks the prompt until answer playback has finished so typed
// input never interleaves with the streamed answer. It polls rather than
// reading Updates, which belongs to the render loop alone.
func waitIdle(ctx context.Context, ctrl *session.Controller) {
	for ctrl.Snapshot().Phase != session.PhaseIdle {
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	// Give the render loop a beat to flush the final frame.
	time.Sleep(20 * time.Millisecond)
}

func submitFeedback(ctx context.Context, ctrl *session.Controller, line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		fmt.Fprintln(os.Stderr, "✗ Cú pháp: /feedback <id> <điểm 1-5> [nhận xét]")
		return
	}
	rating, err := strconv.Atoi(fields[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Điểm không hợp lệ: %s\n", fields[2])
		return
	}
	comment := strings.Join(fields[3:], " ")

	historyID := fields[1]
	feedbackID := ""
	s := ctrl.Snapshot()
	for _, it := range s.Items {
		if it.ID == historyID && it.Feedback != nil {
			feedbackID = it.Feedback.ID
			break
		}
	}

	_ = ctrl.SubmitFeedback(ctx, historyID, rating, comment, feedbackID)
}

func printTranscript(s session.State) {
	fmt.Fprintf(os.Stderr, "— %s —\n", s.Name)
	for _, it := range s.Items {
		fmt.Printf("Bạn: %s\n", it.Question)
		if it.Answer != "" {
			fmt.Printf("Bot: %s\n", it.Answer)
		}
	}
	if s.HasMore {
		fmt.Fprintln(os.Stderr, "(còn lịch sử cũ hơn, gõ /more để tải)")
	}
}
