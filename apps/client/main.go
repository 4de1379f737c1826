// Interactive dev client for the relay protocol. Signs its own token, so it
// only works against a relay sharing the same dev secret.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/relay/pkg/auth"
	"github.com/mahaj/relay/pkg/model"
)

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "relay address")
	userID := flag.String("user", "user1", "user id")
	conversationID := flag.String("conv", "", "conversation id to chat in")
	secret := flag.String("secret", "dev-secret", "shared dev JWT secret")
	flag.Parse()

	if *conversationID == "" {
		log.Fatal("-conv is required")
	}

	token, err := auth.NewVerifier([]byte(*secret)).Sign(*userID, 24*time.Hour)
	if err != nil {
		log.Fatal("signing dev token:", err)
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)

	log.Printf("connecting to %s as %s", u.String(), *userID)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			var f model.Frame
			if err := json.Unmarshal(payload, &f); err != nil {
				log.Printf("raw: %s", payload)
				continue
			}
			printFrame(&f)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("commands: /read /status /history /typing, anything else sends")
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			frame := frameFor(line, *conversationID)
			if frame == nil {
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				log.Println("write:", err)
				return
			}
		}
	}
}

func frameFor(line, conversationID string) *model.Frame {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/read":
		return &model.Frame{Type: model.FrameReadReceipt, ConversationID: conversationID}
	case line == "/status":
		return &model.Frame{Type: model.FrameStatusQuery}
	case line == "/history":
		return &model.Frame{Type: model.FrameHistory, ConversationID: conversationID, Limit: 20}
	case line == "/typing":
		return &model.Frame{Type: model.FrameTyping, ConversationID: conversationID}
	default:
		return &model.Frame{Type: model.FrameSend, ConversationID: conversationID, Content: line}
	}
}

func printFrame(f *model.Frame) {
	switch f.Type {
	case model.FrameMessageReceived:
		fmt.Printf("\r%s: %s\n> ", f.SenderID, f.Content)
	case model.FrameSendAck:
		fmt.Printf("\r[sent #%d at %s]\n> ", f.MessageID, f.CreatedAt.Format(time.Kitchen))
	case model.FrameUnreadCount:
		fmt.Printf("\r[unread %s: %d]\n> ", f.ConversationID, f.Count)
	case model.FramePresence:
		fmt.Printf("\r[%s is %s]\n> ", f.UserID, f.Status)
	case model.FrameMessagesRead:
		fmt.Printf("\r[%s read %s]\n> ", f.ReaderID, f.ConversationID)
	case model.FrameStatusSnapshot:
		for _, e := range f.Entries {
			fmt.Printf("\r[%s: %s]\n", e.UserID, e.Status)
		}
		fmt.Print("> ")
	case model.FrameHistoryResult:
		for i := len(f.Messages) - 1; i >= 0; i-- {
			m := f.Messages[i]
			fmt.Printf("\r%s %s: %s\n", m.CreatedAt.Format(time.Kitchen), m.SenderID, m.Content)
		}
		fmt.Print("> ")
	case model.FrameError:
		fmt.Printf("\r[error %s: %s]\n> ", f.Code, f.Detail)
	default:
		fmt.Printf("\r[%s]\n> ", f.Type)
	}
}
