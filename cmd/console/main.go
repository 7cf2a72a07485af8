package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/chzyer/readline"

	"kgeyst.com/cardreader/pkg/cardreader/api"
	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/common"
)

const usage = `usage:
  console "<prompt> - <image path or URL>"
  console "<prompt>"
  console chat`

func main() {
	log.SetHandler(cli.New(os.Stderr))
	invocation, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	err = mainImpl(invocation)
	if err != nil {
		log.WithError(err).Fatal("console failed")
	}
}

func mainImpl(invocation invocation) error {
	config, err := common.LoadConfig("config.yaml")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cardReader, err := api.NewAPI(config)
	if err != nil {
		return err
	}
	err = cardReader.CheckPrerequisites(ctx)
	if err != nil {
		return fmt.Errorf("prerequisites not met: %w", err)
	}
	log.Infof("model: %s", cardReader.ModelName())
	jsonExtractor, err := domain.NewJSONExtractor(config.GetString(api.ConfigKeyJSONExtraction))
	if err != nil {
		return err
	}
	app := &console{
		cardReader: cardReader,
		repairer:   domain.NewContactRepairer(jsonExtractor),
		out:        os.Stdout,
	}
	if invocation.mode == modeChat {
		return app.chat(ctx)
	}
	return app.query(ctx, invocation.prompt, invocation.location)
}

type console struct {
	cardReader api.API
	repairer   *domain.ContactRepairer
	out        io.Writer
}

func (c *console) query(ctx context.Context, prompt, location string) error {
	image := c.loadImage(ctx, location)
	fragmentCount := 0
	response, err := c.cardReader.Query(ctx, prompt, image, func(fragment string) {
		fragmentCount++
		_, _ = fmt.Fprint(c.out, fragment)
	})
	_, _ = fmt.Fprintln(c.out)
	if err != nil {
		return err
	}
	log.Infof("received %d fragments", fragmentCount)
	if image != nil {
		c.printContact(response)
	}
	return nil
}

// loadImage a bad image is not fatal: the prompt still goes through, text-only.
func (c *console) loadImage(ctx context.Context, location string) *domain.CardImage {
	if location == "" {
		return nil
	}
	image, err := c.cardReader.LoadImage(ctx, location)
	if err != nil {
		log.WithError(err).Warnf("could not load image %q, continuing without it", location)
		return nil
	}
	log.Infof("loaded image %s (%dx%d)", location, image.Width, image.Height)
	return image
}

func (c *console) printContact(response string) {
	contact, err := c.repairer.Repair(response)
	if err != nil {
		log.WithError(err).Warn("the response could not be parsed as JSON")
		return
	}
	data, err := json.Marshal(contact)
	if err != nil {
		log.WithError(err).Warn("failed to serialize the contact")
		return
	}
	var pretty bytes.Buffer
	err = json.Indent(&pretty, data, "", "  ")
	if err != nil {
		log.WithError(err).Warn("failed to serialize the contact")
		return
	}
	_, _ = fmt.Fprintln(c.out, "\nParsed JSON:")
	_, _ = fmt.Fprintln(c.out, pretty.String())
}

func (c *console) chat(ctx context.Context) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()
	_, _ = fmt.Fprintln(c.out, `Chat mode. Attach an image with "<message> - <path>" or paste a URL. Type "exit" to quit.`)
	session := c.cardReader.NewChatSession()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}
		prompt, image := c.promptAndImage(ctx, line)
		_, err = session.Ask(ctx, prompt, image, func(fragment string) {
			_, _ = fmt.Fprint(c.out, fragment)
		})
		_, _ = fmt.Fprintln(c.out)
		if err != nil {
			_, _ = fmt.Fprintln(c.out, "Error:", err)
		}
	}
}

func (c *console) promptAndImage(ctx context.Context, line string) (string, *domain.CardImage) {
	if url, rest, ok := c.cardReader.FindImageURL(line); ok {
		if image := c.loadImage(ctx, url); image != nil {
			return rest, image
		}
		return line, nil
	}
	prompt, location := splitPromptAndImage(line)
	if location == "" {
		return prompt, nil
	}
	if !common.IsImageFormat(location) {
		return line, nil
	}
	if image := c.loadImage(ctx, location); image != nil {
		return prompt, image
	}
	return prompt, nil
}
