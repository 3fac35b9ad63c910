// tapfeed plays the game stream against a running bridge tap. It dials
// the tap endpoint, announces a session and a local ship, and then
// forwards stdin lines as raw game frames. Useful for exercising the
// bridge without the real game client.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Printf("tapfeed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://127.0.0.1:7388/tap", "tap endpoint")
	game := flag.String("game", "Alpha", "game name to announce")
	system := flag.Int("system", 7, "system id to announce")
	ship := flag.Int("ship", 42, "local ship id")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(frame string) error {
		return conn.Write(ctx, websocket.MessageText, []byte(frame))
	}

	if err := send(fmt.Sprintf(`{"name":"welcome","data":{"name":%q,"systemid":%d}}`, *game, *system)); err != nil {
		return err
	}
	if err := send(fmt.Sprintf(`{"name":"entered","data":{"shipid":%d}}`, *ship)); err != nil {
		return err
	}
	fmt.Printf("feeding %s (game=%s system=%d ship=%d)\n", *addr, *game, *system, *ship)
	fmt.Println(`commands: "name <id> <player>", "gone <id>", or a raw JSON frame`)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame, err := buildFrame(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if err := send(frame); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return scanner.Err()
}

func buildFrame(line string) (string, error) {
	if strings.HasPrefix(line, "{") {
		if !json.Valid([]byte(line)) {
			return "", fmt.Errorf("not valid JSON: %s", line)
		}
		return line, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "name":
		if len(fields) < 3 {
			return "", fmt.Errorf("usage: name <id> <player>")
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("bad id %q", fields[1])
		}
		return fmt.Sprintf(`{"name":"player_name","data":{"id":%d,"player_name":%q,"hue":120}}`,
			id, strings.Join(fields[2:], " ")), nil

	case "gone":
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: gone <id>")
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("bad id %q", fields[1])
		}
		return fmt.Sprintf(`{"name":"shipgone","data":%d}`, id), nil

	default:
		return "", fmt.Errorf("unknown command %q", fields[0])
	}
}
