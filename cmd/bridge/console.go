package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/juliachat/bridge/internal/bridge"
)

// console is the terminal stand-in for the host environment's view and
// auth layers: it prints display events and prompts for the credential
// on stdin. Real hosts replace it through app.Options.
type console struct {
	mu sync.Mutex // stdin is shared between chat input and the prompt

	promptCh chan string
	prompt   bool
}

func newConsole() *console {
	return &console{promptCh: make(chan string)}
}

// Display prints one chat/presence line.
func (c *console) Display(ev bridge.DisplayEvent) {
	switch ev.Kind {
	case bridge.DisplayPresence:
		fmt.Printf("* %s %s\n", ev.Speaker, ev.Text)
	default:
		fmt.Printf("%s: %s\n", ev.Speaker, ev.Text)
	}
}

// Notice surfaces the one blocking failure path (auth rejection).
func (c *console) Notice(text string) {
	fmt.Printf("!! %s\n", text)
}

// Request asks the user for the channel credential. Lines typed while
// the prompt is open are routed here instead of chat.
func (c *console) Request(ctx context.Context) (string, bool) {
	c.mu.Lock()
	c.prompt = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.prompt = false
		c.mu.Unlock()
	}()

	fmt.Print("Enter PIN (empty to skip): ")
	select {
	case <-ctx.Done():
		return "", false
	case line := <-c.promptCh:
		line = strings.TrimSpace(line)
		return line, line != ""
	}
}

// inputLoop reads stdin lines: chat input normally, prompt answers
// while a credential prompt is open.
func (c *console) inputLoop(ctx context.Context, sendChat func(string)) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()

		c.mu.Lock()
		prompting := c.prompt
		c.mu.Unlock()

		if prompting {
			select {
			case c.promptCh <- line:
			case <-ctx.Done():
				return
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		sendChat(line)
	}
}
