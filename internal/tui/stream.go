package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nexmoe/vidbee-server/internal/model"
)

// streamEvent is one decoded push-channel frame.
type streamEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type taskEventMsg struct {
	task model.DownloadTask
}

type queueEventMsg struct {
	tasks []model.DownloadTask
}

type historyEventMsg struct {
	tasks []model.DownloadTask
}

type streamClosedMsg struct {
	err error
}

// decodeEventLine turns one SSE data line into a dashboard message. Lines
// that are not data frames (comments, blank keep-alives) return nil.
func decodeEventLine(line string) interface{} {
	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok {
		return nil
	}
	var ev streamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil
	}
	switch ev.Type {
	case "task-updated":
		var task model.DownloadTask
		if err := json.Unmarshal(ev.Payload, &task); err != nil {
			return nil
		}
		return taskEventMsg{task: task}
	case "queue-updated":
		var tasks []model.DownloadTask
		if err := json.Unmarshal(ev.Payload, &tasks); err != nil {
			return nil
		}
		return queueEventMsg{tasks: tasks}
	case "history-updated":
		var tasks []model.DownloadTask
		if err := json.Unmarshal(ev.Payload, &tasks); err != nil {
			return nil
		}
		return historyEventMsg{tasks: tasks}
	default:
		return nil
	}
}

// streamEvents connects to the server's event endpoint and forwards decoded
// messages until the connection drops or ctx is cancelled. The final
// streamClosedMsg always arrives on the channel.
func streamEvents(ctx context.Context, baseURL string, out chan<- interface{}) {
	defer close(out)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/events", nil)
	if err != nil {
		out <- streamClosedMsg{err: err}
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		out <- streamClosedMsg{err: err}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		out <- streamClosedMsg{err: fmt.Errorf("event stream returned status %d", resp.StatusCode)}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if msg := decodeEventLine(scanner.Text()); msg != nil {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
	select {
	case out <- streamClosedMsg{err: scanner.Err()}:
	case <-ctx.Done():
	}
}
