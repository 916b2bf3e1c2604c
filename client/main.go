package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// send wraps an action in the wire envelope and ships it.
func send(c *websocket.Conn, actionType string, payload interface{}) error {
	envelope := map[string]interface{}{"type": actionType}
	if payload != nil {
		envelope["payload"] = payload
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func main() {
	host := flag.String("host", "localhost:8080", "server host")
	roomCode := flag.String("room", "", "room code to join")
	name := flag.String("name", "Anonymous", "display name")
	flag.Parse()

	if *roomCode == "" {
		log.Fatal("a room code is required: -room CODE")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme:   "ws",
		Host:     *host,
		Path:     "/ws",
		RawQuery: url.Values{"room": {*roomCode}, "name": {*name}}.Encode(),
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop: every frame is a full state broadcast.
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- STATE: %s", string(message))
		}
	}()

	log.Println("Client started. Commands: submit <answer> | advance | end | say <text>")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)

			var sendErr error
			switch {
			case strings.HasPrefix(text, "submit "):
				sendErr = send(c, "submit_answer", map[string]string{"value": strings.TrimPrefix(text, "submit ")})
			case text == "advance":
				sendErr = send(c, "advance_scene", nil)
			case text == "end":
				sendErr = send(c, "end_game", nil)
			case strings.HasPrefix(text, "say "):
				sendErr = send(c, "broadcast", map[string]string{"text": strings.TrimPrefix(text, "say ")})
			case text == "":
				continue
			default:
				log.Printf("Unknown command: %q", text)
				continue
			}

			if sendErr != nil {
				log.Println("Write error:", sendErr)
				return
			}
			log.Printf("-> SENT: %s", text)
		}
	}
}
