package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, r *chi.Mux) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Code":    code,
		"Message": message,
		"Data":    data,
	})
}

func TestHistoryDecodesPage(t *testing.T) {
	var gotPage, gotSize, gotVisitor string

	r := chi.NewRouter()
	r.Get("/chatbot/history/{chatId}", func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "c1", chi.URLParam(req, "chatId"))
		gotPage = req.URL.Query().Get("page")
		gotSize = req.URL.Query().Get("size")
		gotVisitor = req.URL.Query().Get("visitorId")

		writeEnvelope(w, StatusSuccess, "", map[string]any{
			"chat":       map[string]any{"_id": "c1", "name": "Tư vấn tuyển sinh"},
			"pagination": map[string]any{"hasMore": true},
			"items": []map[string]any{
				{"_id": "h2", "question": "q2", "answer": "a2"},
				{"_id": "h1", "question": "q1", "answer": "a1"},
			},
		})
	})

	client := newTestClient(t, r)
	page, err := client.History(context.Background(), "c1", 2, 5, "v9")
	require.NoError(t, err)

	require.Equal(t, "2", gotPage)
	require.Equal(t, "5", gotSize)
	require.Equal(t, "v9", gotVisitor)

	require.Equal(t, "Tư vấn tuyển sinh", page.Chat.Name)
	require.True(t, page.Pagination.HasMore)
	require.Len(t, page.Items, 2)
	require.Equal(t, "h2", page.Items[0].ID)
}

func TestSendQuestion(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chatbot/chat", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, "Học phí bao nhiêu?", body["question"])

		writeEnvelope(w, StatusSuccess, "", map[string]string{
			"historyId": "h7",
			"answer":    "Khoảng 27 triệu/năm.",
			"chatId":    "c3",
			"visitorId": "v2",
		})
	})

	client := newTestClient(t, r)
	res, err := client.SendQuestion(context.Background(), "Học phí bao nhiêu?", "", "")
	require.NoError(t, err)
	require.Equal(t, "h7", res.HistoryID)
	require.Equal(t, "c3", res.ChatID)
	require.Equal(t, "v2", res.VisitorID)
}

func TestApplicationErrorSurfacesMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chatbot/chat", func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, 0, "Hệ thống đang bảo trì", nil)
	})

	client := newTestClient(t, r)
	_, err := client.SendQuestion(context.Background(), "q", "c1", "")
	require.Error(t, err)

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "Hệ thống đang bảo trì", appErr.Message)
}

func TestCreateChat(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chats", func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, StatusSuccess, "", map[string]string{
			"_id": "c1", "name": "Điều kiện tuyển sinh?", "visitorId": "v1",
		})
	})

	client := newTestClient(t, r)
	summary, err := client.CreateChat(context.Background(), "Điều kiện tuyển sinh?", "")
	require.NoError(t, err)
	require.Equal(t, "c1", summary.ID)
	require.Equal(t, "v1", summary.VisitorID)
}

func TestFeedbackValidation(t *testing.T) {
	called := false
	r := chi.NewRouter()
	r.Post("/feedbacks", func(w http.ResponseWriter, req *http.Request) {
		called = true
	})

	client := newTestClient(t, r)
	_, err := client.CreateFeedback(context.Background(), "h1", FeedbackInput{Rating: 6})
	require.Error(t, err)
	require.False(t, called, "invalid input must not reach the server")
}

func TestUpdateFeedback(t *testing.T) {
	r := chi.NewRouter()
	r.Put("/feedbacks/{feedbackId}", func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "f1", chi.URLParam(req, "feedbackId"))
		writeEnvelope(w, StatusSuccess, "", map[string]any{"_id": "f1", "rating": 4})
	})

	client := newTestClient(t, r)
	fb, err := client.UpdateFeedback(context.Background(), "f1", FeedbackInput{Rating: 4, Comment: "ok"})
	require.NoError(t, err)
	require.Equal(t, "f1", fb.ID)
	require.Equal(t, 4, fb.Rating)
}
