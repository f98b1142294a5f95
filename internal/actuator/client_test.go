package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Versifine/teleop/internal/motion"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&Config{BaseURL: serverURL + "/api/", Timeout: 100 * time.Millisecond})
}

func TestSendControl(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind ErrorKind
		wantCode int
	}{
		{
			name: "正常返回",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Method = %q, 期望 POST", r.Method)
				}
				if r.URL.Path != "/api/control" {
					t.Errorf("Path = %q, 期望 /api/control", r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type header = %q, 期望 %q", r.Header.Get("Content-Type"), "application/json")
				}
				var body map[string]map[string]float64
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("解析请求体失败: %v", err)
				}
				if body["translate"]["x"] != 0.75 || body["translate"]["y"] != -1.5 || body["rotate"]["z"] != 0.3 {
					t.Errorf("请求体不符预期: %+v", body)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"status":"success"}`))
			},
			wantKind: KindNone,
		},
		{
			name: "任意响应体",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[1,2,3]`))
			},
			wantKind: KindNone,
		},
		{
			name: "返回500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"motor fault"}`))
			},
			wantKind: KindStatus,
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "返回204也视为失败",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			wantKind: KindStatus,
			wantCode: http.StatusNoContent,
		},
		{
			name: "响应超时",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantKind: KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server.URL)
			err := client.SendControl(context.Background(), motion.Command{
				Translate: motion.Translate{X: 0.75, Y: -1.5},
				Rotate:    motion.Rotate{Z: 0.3},
			})

			if got := Classify(err); got != tt.wantKind {
				t.Fatalf("Classify(%v) = %q, 期望 %q", err, got, tt.wantKind)
			}
			if tt.wantCode != 0 {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("期望 *StatusError，实际: %v", err)
				}
				if statusErr.Code != tt.wantCode {
					t.Errorf("Code = %d, 期望 %d", statusErr.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestSendServo(t *testing.T) {
	received := make(chan ServoRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/servo" {
			t.Errorf("Path = %q, 期望 /api/servo", r.URL.Path)
		}
		var req ServoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		received <- req
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.SendServo(context.Background(), 6, 90.5); err != nil {
		t.Fatalf("SendServo() 返回错误: %v", err)
	}

	got := <-received
	if got.ServoID != 6 || got.Angle != 90.5 {
		t.Errorf("收到 %+v, 期望 servo 6 angle 90.5", got)
	}
}

func TestSendControl_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := newTestClient(url).SendControl(context.Background(), motion.Command{})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("期望 ErrConnection，实际: %v", err)
	}
}

func TestSendControl_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestClient(server.URL).SendControl(ctx, motion.Command{})
	if err == nil {
		t.Fatal("期望 context cancelled 错误，实际成功")
	}
	if got := Classify(err); got != KindCanceled {
		t.Errorf("取消应归类为 %q, 实际 %q: %v", KindCanceled, got, err)
	}
}

func TestNewClient_NilConfig(t *testing.T) {
	client := NewClient(nil)
	if client.Config().BaseURL != "http://127.0.0.1:5000/api" {
		t.Errorf("默认 BaseURL = %q", client.Config().BaseURL)
	}
	if client.Config().Timeout != 500*time.Millisecond {
		t.Errorf("默认 Timeout = %s, 期望 500ms", client.Config().Timeout)
	}
}

func TestDiscard(t *testing.T) {
	var d Discard
	if err := d.SendControl(context.Background(), motion.Command{}); err != nil {
		t.Fatalf("Discard.SendControl() = %v", err)
	}
	if err := d.SendServo(context.Background(), 0, 1); err != nil {
		t.Fatalf("Discard.SendServo() = %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrTimeout, KindTimeout},
		{ErrConnection, KindConnection},
		{&StatusError{Code: 502}, KindStatus},
		{errors.New("boom"), KindOther},
		{wrapTransport(context.DeadlineExceeded), KindTimeout},
		{wrapTransport(errors.New("connection refused")), KindConnection},
		{wrapTransport(context.Canceled), KindCanceled},
		{fmt.Errorf("post control: %w", context.Canceled), KindCanceled},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, 期望 %q", tt.err, got, tt.want)
		}
	}
}
