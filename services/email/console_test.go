package emailsvc

import (
	"bytes"
	"io"
	"log"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ja-viss/caipa-connect-sub000/core"
	logsvc "github.com/ja-viss/caipa-connect-sub000/services/logger"
)

func testOptions() Options {
	return Options{
		AppName:          "CAIPA Connect",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "CAIPA", Address: "noreply@caipa.test"},
		Logger:           logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &core.Config{TestMode: true}),
	}
}

func TestConsoleService_sendMessage(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(testOptions(), log.New(&out, "", 0))

	sent := svc.sendMessage(&core.EmailMessage{
		To:      []mail.Address{{Name: "Rosa Díaz", Address: "rosa@caipa.com"}},
		Cc:      []mail.Address{{Address: "admin@caipa.com"}},
		Subject: "Aviso",
		BodyStr: "Mañana no hay clases.",
	})
	assert.True(t, sent)

	body := out.String()
	for _, want := range []string{
		"From: \"CAIPA\" <noreply@caipa.test>\r\n",
		"Subject: [CAIPA Connect] Aviso\r\n",
		"To: =?utf-8?q?Rosa_D=C3=ADaz?= <rosa@caipa.com>\r\n",
		"CC: <admin@caipa.com>\r\n",
		"Content-Type: text/plain; charset=utf-8",
		"Mañana no hay clases.",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "text/html", "no html part without html content")
}

func TestConsoleService_nothingToSend(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(testOptions(), log.New(&out, "", 0))

	assert.False(t, svc.sendMessage(&core.EmailMessage{Subject: "Aviso", BodyStr: "sin destinatarios"}))
	assert.False(t, svc.sendMessage(&core.EmailMessage{To: []mail.Address{{Address: "rosa@caipa.com"}}, Subject: "vacío"}))
	assert.Empty(t, strings.TrimSpace(out.String()))
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(testOptions())
	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "rosa@caipa.com"}}, Subject: "Uno", BodyStr: "1"},
		&core.EmailMessage{Subject: "sin destinatarios", BodyStr: "2"},
	)

	sent := svc.Sent()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "Uno", sent[0].Subject)
		assert.Equal(t, "1", sent[0].TextContent)
	}
}
