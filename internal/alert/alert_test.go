package alert

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-watchdog/internal/config"
	"go-watchdog/internal/models"
)

func TestChannelsPostPayload(t *testing.T) {
	var got []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = append(got, payload)
	}))
	defer srv.Close()

	channels := NewChannels([]config.ChannelConfig{
		{Type: "discord", URL: srv.URL},
		{Type: "Slack", URL: srv.URL},
		{Type: "webhook", URL: srv.URL},
		{Type: "carrier-pigeon", URL: srv.URL},
	})
	if len(channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(channels))
	}
	for _, ch := range channels {
		if err := ch.Send(context.Background(), "Down", "api is down"); err != nil {
			t.Fatalf("%s: %v", ch.Name(), err)
		}
	}

	if !strings.Contains(got[0]["content"], "**Down**") {
		t.Errorf("discord payload = %v", got[0])
	}
	if !strings.Contains(got[1]["text"], "*Down*") {
		t.Errorf("slack payload = %v", got[1])
	}
	if got[2]["title"] != "Down" || got[2]["message"] != "api is down" {
		t.Errorf("webhook payload = %v", got[2])
	}
}

func TestChannelReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewChannels([]config.ChannelConfig{{Type: "webhook", URL: srv.URL}})[0]
	if err := ch.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestCompose(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	subject, body := Compose(models.Notification{Kind: models.NotifyOffline, Name: "api", Note: "timeout", Threshold: 3, At: at})
	if subject != `Watchdog "api" is offline` {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "3 consecutive") || !strings.Contains(body, "timeout") {
		t.Errorf("body = %q", body)
	}

	subject, _ = Compose(models.Notification{Kind: models.NotifyOnline, Name: "api", At: at})
	if subject != `Watchdog "api" is back online` {
		t.Errorf("subject = %q", subject)
	}
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{Host: "127.0.0.1", Port: 1, From: "w@localhost"})
	if err := m.Send(context.Background(), "a@b\r\nBcc: evil@x", "s", "b"); err == nil {
		t.Fatal("expected refusal")
	}
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{Host: "10.255.255.1", Port: 25, From: "w@localhost"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "ops@example.com", "s", "b"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// smtpListener accepts connections on a loopback port and hands each to serve.
func smtpListener(t *testing.T, serve func(net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestSMTPMailerGivesUpOnSilentServer(t *testing.T) {
	var mu sync.Mutex
	var conns []net.Conn
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	// accepts and never greets
	host, port := smtpListener(t, func(c net.Conn) {
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
	})

	m := NewSMTPMailer(config.EmailConfig{Host: host, Port: port, From: "w@localhost"})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Send(ctx, "ops@example.com", "s", "b") }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error from silent server")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send still blocked after its context expired")
	}
}

func TestSMTPMailerDelivers(t *testing.T) {
	got := make(chan string, 1)
	host, port := smtpListener(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		reply := func(s string) { c.Write([]byte(s + "\r\n")) }
		reply("220 localhost ESMTP")
		var body strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					got <- body.String()
					reply("250 queued")
					continue
				}
				body.WriteString(line)
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250-localhost")
				reply("250 8BITMIME")
			case strings.HasPrefix(cmd, "DATA"):
				inData = true
				reply("354 go ahead")
			case strings.HasPrefix(cmd, "QUIT"):
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	})

	m := NewSMTPMailer(config.EmailConfig{Host: host, Port: port, From: "w@localhost"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Send(ctx, "ops@example.com", "Watchdog down", "it broke"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-got:
		for _, want := range []string{"To: ops@example.com", "Subject: Watchdog down", "it broke"} {
			if !strings.Contains(msg, want) {
				t.Errorf("message missing %q:\n%s", want, msg)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the message")
	}
}
