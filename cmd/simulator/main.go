// Command simulator runs a handful of simulated chat users that generate
// steady traffic against a server: joins, typing bursts and messages. Useful
// for exercising reconnection and fanout behavior during development.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/solterm/solterm/pkg/botlib"
)

// Persona defines one simulated user's traffic shape.
type Persona struct {
	Name        string
	Phrases     []string
	ReplyChance float64
}

var defaultPersonas = []Persona{
	{
		Name: "degen_dave",
		Phrases: []string{
			"anyone watching the charts today?",
			"this dip is free money",
			"gm everyone",
			"just aped in, wish me luck",
		},
		ReplyChance: 0.4,
	},
	{
		Name: "cautious_carol",
		Phrases: []string{
			"remember to take profits",
			"what's the liquidity like on that one?",
			"dyor before buying anything mentioned here",
			"volume looks thin to me",
		},
		ReplyChance: 0.3,
	},
	{
		Name: "helpful_hank",
		Phrases: []string{
			"check the pinned message for the faq",
			"you can verify the contract on the explorer",
			"the support channel is quicker for that",
			"restart your wallet extension, works every time",
		},
		ReplyChance: 0.5,
	},
	{
		Name: "lurker_lu",
		Phrases: []string{
			"lol",
			"this",
			"same",
			"wild",
		},
		ReplyChance: 0.15,
	},
}

// SimulatedUser wraps one bot in a send loop.
type SimulatedUser struct {
	bot      *botlib.Bot
	persona  Persona
	channels []string
	interval time.Duration
	rng      *rand.Rand
	logger   zerolog.Logger
}

func NewSimulatedUser(socketURL string, persona Persona, channels []string, interval time.Duration, logger zerolog.Logger) *SimulatedUser {
	userLogger := logger.With().Str("user", persona.Name).Logger()
	bot := botlib.New(botlib.Config{
		SocketURL: socketURL,
		Username:  persona.Name,
		Logger:    userLogger,
	})

	u := &SimulatedUser{
		bot:      bot,
		persona:  persona,
		channels: channels,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(len(persona.Name)))),
		logger:   userLogger,
	}

	bot.OnMention(func(ctx *botlib.Context, msg *botlib.Message) {
		if u.rng.Float64() < persona.ReplyChance {
			_ = ctx.Reply(fmt.Sprintf("@%s %s", msg.Author, u.pickPhrase()))
		}
	})

	return u
}

func (u *SimulatedUser) pickPhrase() string {
	return u.persona.Phrases[u.rng.Intn(len(u.persona.Phrases))]
}

func (u *SimulatedUser) Run(stopCh <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	botDone := make(chan error, 1)
	go func() {
		botDone <- u.bot.Run()
	}()

	if !u.bot.WaitUntilConnected(5 * time.Second) {
		u.logger.Error().Msg("never connected, giving up")
		u.bot.Stop()
		return
	}

	// Jitter so the users never send in lockstep.
	ticker := time.NewTicker(u.interval + time.Duration(u.rng.Intn(3000))*time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			u.bot.Stop()
			<-botDone
			return
		case err := <-botDone:
			if err != nil {
				u.logger.Error().Err(err).Msg("bot stopped")
			}
			return
		case <-ticker.C:
			u.sendOne()
		}
	}
}

// sendOne emits a typing burst and then a message into a random channel,
// the same shape a real client produces.
func (u *SimulatedUser) sendOne() {
	channel := u.channels[u.rng.Intn(len(u.channels))]
	if err := u.bot.Typing(channel, true); err != nil {
		u.logger.Warn().Err(err).Msg("typing failed")
		return
	}
	time.Sleep(time.Duration(500+u.rng.Intn(1500)) * time.Millisecond)
	if err := u.bot.SendMessage(channel, u.pickPhrase()); err != nil {
		u.logger.Warn().Err(err).Str("channel", channel).Msg("send failed")
		return
	}
	_ = u.bot.Typing(channel, false)
}

func main() {
	socketURL := flag.String("server", "ws://localhost:8080/socket", "Server websocket URL")
	channelsFlag := flag.String("channels", "general,trading,support", "Comma-separated channels to post into")
	numUsers := flag.Int("users", 3, "Number of simulated users (max 4)")
	interval := flag.Duration("interval", 10*time.Second, "Base interval between messages per user")
	flag.Parse()

	if *numUsers > len(defaultPersonas) {
		*numUsers = len(defaultPersonas)
	}
	if *numUsers < 1 {
		*numUsers = 1
	}

	channels := strings.Split(*channelsFlag, ",")
	for i := range channels {
		channels[i] = strings.TrimSpace(channels[i])
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	logger.Info().
		Str("server", *socketURL).
		Int("users", *numUsers).
		Strs("channels", channels).
		Msg("starting chat simulator")

	stopCh := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < *numUsers; i++ {
		user := NewSimulatedUser(*socketURL, defaultPersonas[i], channels, *interval, logger)
		wg.Add(1)
		// Stagger starts to avoid a connection storm.
		time.Sleep(500 * time.Millisecond)
		go user.Run(stopCh, &wg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	close(stopCh)
	wg.Wait()
}
