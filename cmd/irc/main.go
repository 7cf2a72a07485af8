package main

import (
	"context"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/whyrusleeping/hellabot"

	"kgeyst.com/cardreader/pkg/cardreader/api"
	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/common"
)

const helpMessage = "send me a link to a photo of a business card and I'll read it for you"

func main() {
	log.SetHandler(cli.New(os.Stderr))
	err := mainImpl()
	if err != nil {
		log.WithError(err).Fatal("IRC bot failed")
	}
}

func mainImpl() error {
	config, err := common.LoadConfig("config.yaml")
	if err != nil {
		return err
	}
	agentName := config.GetStringOrDefault("agentName", "CardReader")
	channel := "#" + strings.TrimPrefix(config.GetStringOrDefault("ircChannel", "cardreader"), "#")
	serverName := config.GetStringOrDefault("ircServer", "irc.euirc.net:6667")
	logger := common.NewFileLogger(config.GetStringOrDefault(api.ConfigKeyLogPath, "log.txt"))
	cardReader, err := api.NewAPIWithLogger(config, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()
	err = cardReader.CheckPrerequisites(ctx)
	if err != nil {
		return err
	}
	jobQueue := common.NewJobQueue(logger)
	defer jobQueue.Stop()
	ircBot, err := hbot.NewBot(serverName, agentName)
	if err != nil {
		return err
	}
	var trigger = hbot.Trigger{
		func(b *hbot.Bot, m *hbot.Message) bool {
			return m.Command == "PRIVMSG"
		},
		func(b *hbot.Bot, m *hbot.Message) bool {
			what, ok := addressedTo(agentName, m.Content)
			if !ok || len(m.To) == 0 || m.To[0] != '#' {
				return false
			}
			from := strings.TrimSpace(m.From)
			if what == "" || what == "help" {
				b.Reply(m, from+" "+helpMessage)
				return false
			}
			url, _, ok := cardReader.FindImageURL(what)
			if !ok {
				b.Reply(m, from+" "+helpMessage)
				return false
			}
			enqueued := jobQueue.Enqueue(func() error {
				result := cardReader.ParseCardFromLocation(ctx, url)
				b.Reply(m, from+" "+formatReply(result))
				return nil
			})
			if !enqueued {
				b.Reply(m, from+" too busy, try again later")
			}
			return true
		},
	}
	ircBot.AddTrigger(trigger)
	ircBot.Channels = []string{channel}
	log.Infof("model: %s", cardReader.ModelName())
	log.Infof("joining %s on %s as %s", channel, serverName, agentName)
	ircBot.Run()
	return nil
}

// addressedTo returns the message without the "<agentName>," prefix. Mentions like "<agentName>@..." don't count.
func addressedTo(agentName, content string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(content), strings.ToLower(agentName)) {
		return "", false
	}
	what := strings.TrimSpace(content[len(agentName):])
	if strings.HasPrefix(what, "@") {
		return "", false
	}
	what = strings.TrimPrefix(what, ",")
	what = strings.TrimPrefix(what, ":")
	return strings.TrimSpace(what), true
}

// formatReply IRC is line-based: the contact is summarized on one line.
func formatReply(result *domain.Result) string {
	if !result.Failed() {
		return result.Contact.Summary()
	}
	if result.Outcome() == domain.OutcomeParseFailure {
		return "couldn't make sense of the card, the model said: " + oneLine(result.RawOutput, 200)
	}
	return "couldn't read the card: " + oneLine(result.Error, 200)
}

func oneLine(str string, maxLength int) string {
	str = strings.Join(strings.Fields(str), " ")
	runes := []rune(str)
	if len(runes) > maxLength {
		return string(runes[:maxLength]) + "..."
	}
	return str
}
