package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"playlistwatch/internal/core"
)

func TestBuildMessage_Headers(t *testing.T) {
	msg := string(buildMessage("bot@example.com", "alice@example.com", "Update", "<p>hi</p>"))

	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: alice@example.com\r\n",
		"Subject: Update\r\n",
		"MIME-Version: 1.0\r\n",
		`Content-Type: text/html; charset="UTF-8"` + "\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message is missing header %q", want)
		}
	}

	header, body, found := strings.Cut(msg, "\r\n\r\n")
	if !found {
		t.Fatal("message has no header/body separator")
	}
	if strings.Contains(header, "<p>hi</p>") {
		t.Error("body leaked into the header section")
	}
	if !strings.Contains(body, "<p>hi</p>") {
		t.Errorf("body section = %q, want the html payload", body)
	}
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMessage("bot@example.com", "alice@example.com", `Update to the playlist "Café"`, ""))

	if strings.Contains(msg, "Subject: Update to the playlist \"Café\"\r\n") {
		t.Error("non-ascii subject was not encoded")
	}
	if !strings.Contains(msg, "Subject: ") {
		t.Error("message is missing the subject header")
	}
}

func TestSend_RejectsUnconfiguredTransport(t *testing.T) {
	transport := NewTransport(core.MailSettings{}, time.Second, time.Second, zap.NewNop())

	err := transport.Send(context.Background(), "alice@example.com", "s", "b")
	if err == nil {
		t.Fatal("Send succeeded without host or sender configured")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("err = %v, want a configuration error", err)
	}
}
