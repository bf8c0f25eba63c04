// Command probe is a development client for the session socket. It starts a
// session, streams a raw PCM16 file as the microphone and prints every event.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"io"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	addr := flag.String("url", "ws://localhost:3000/api/ws", "session socket URL")
	token := flag.String("token", "", "JWT for the handshake")
	pcmPath := flag.String("pcm", "", "raw PCM16 mono file to stream as the microphone")
	rate := flag.Int("rate", 24000, "sample rate of the PCM file")
	trigger := flag.Bool("trigger", false, "send trigger_response after streaming")
	flag.Parse()

	u, err := url.Parse(*addr)
	if err != nil {
		color.Red("Bad URL: %v", err)
		os.Exit(1)
	}
	if *token != "" {
		q := u.Query()
		q.Set("token", *token)
		u.RawQuery = q.Encode()
	}

	color.Cyan("Connecting to %s", *addr)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		color.Red("Dial failed: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		once := false
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				color.Red("Connection closed: %v", err)
				return
			}
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				color.Red("Undecodable frame: %s", raw)
				continue
			}
			printEvent(env)
			if env.Type == "session_started" && !once {
				once = true
				close(started)
			}
		}
	}()

	send(conn, map[string]interface{}{"type": "start_session", "displayName": "probe"})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-started:
	case <-done:
		return
	case <-interrupt:
		return
	case <-time.After(15 * time.Second):
		color.Red("No session_started within 15s")
		return
	}

	if *pcmPath != "" {
		if err := stream(conn, *pcmPath, *rate); err != nil {
			color.Red("Streaming failed: %v", err)
		}
	}
	if *trigger {
		send(conn, map[string]interface{}{"type": "trigger_response"})
	}

	select {
	case <-done:
	case <-interrupt:
		send(conn, map[string]interface{}{"type": "stop_session"})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func send(conn *websocket.Conn, msg map[string]interface{}) {
	if err := conn.WriteJSON(msg); err != nil {
		color.Red("Send %v failed: %v", msg["type"], err)
	}
}

// stream paces 100ms frames in real time so server VAD sees natural speech.
func stream(conn *websocket.Conn, path string, rate int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	frame := make([]byte, rate/10*2)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	sent := 0
	for {
		n, err := io.ReadFull(f, frame)
		if n > 0 {
			<-ticker.C
			send(conn, map[string]interface{}{"type": "audio", "audio": base64.StdEncoding.EncodeToString(frame[:n])})
			sent++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			color.Cyan("Streamed %d frames", sent)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func printEvent(env envelope) {
	switch env.Type {
	case "audio":
		var a struct {
			Audio  string `json:"audio"`
			Source string `json:"source"`
		}
		_ = json.Unmarshal(env.Data, &a)
		color.Blue("audio (%s, %d b64 chars)", a.Source, len(a.Audio))
	case "error":
		color.Red("%s %s", env.Type, env.Data)
	case "transcript", "pm_response", "claude_response":
		color.Green("%s %s", env.Type, env.Data)
	case "thinking", "speaking_state":
		color.Yellow("%s %s", env.Type, env.Data)
	case "file_saved", "screenshot_saved":
		color.Magenta("%s %s", env.Type, env.Data)
	default:
		color.White("%s %s", env.Type, env.Data)
	}
}
