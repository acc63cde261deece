// Command aether is a terminal front end for the relay.
//
//	aether story -idea "A robot on Mars" -length short -tone whimsical
//	aether tool -name continue -in story.txt
//	aether paragraph -topic "tidal locking"
//	aether outline -topic "Go generics" -audience "new gophers"
//	aether image -prompt "a red fox in snow" -out fox.png
//	aether tts -text "Hello there" -voice Puck -out hello
//
// The relay address comes from -relay or AETHER_RELAY_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/lizzyg/aether"
	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/writer"
)

const defaultRelay = "http://localhost:3000"

type app struct {
	caller *aether.Caller
	stdout io.Writer
	stderr io.Writer
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...aether.Option) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, rest := args[0], args[1:]

	relayURL := os.Getenv("AETHER_RELAY_URL")
	if relayURL == "" {
		relayURL = defaultRelay
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&relayURL, "relay", relayURL, "relay base URL")
	verbose := fs.Bool("v", false, "log retries to stderr")

	var handler func(context.Context, *app) error
	switch cmd {
	case "story":
		idea := fs.String("idea", "", "story idea")
		length := fs.String("length", string(writer.LengthShort), "short, medium or long")
		tone := fs.String("tone", string(writer.ToneNone), "tone, or none")
		handler = func(ctx context.Context, a *app) error {
			l, err := writer.ParseLength(*length)
			if err != nil {
				return usageError{err.Error()}
			}
			return a.text(ctx, *idea, "Please enter a story idea.",
				writer.StoryPrompt(*idea, l, writer.Tone(*tone)), "Story generated successfully!", nil)
		}
	case "tool":
		name := fs.String("name", "", "one of: "+toolNames())
		in := fs.String("in", "-", "file holding the story, - for stdin")
		genre := fs.String("genre", "", "genre for -name rewrite")
		handler = func(ctx context.Context, a *app) error {
			story, err := readInput(*in)
			if err != nil {
				return err
			}
			if strings.TrimSpace(story) == "" {
				return usageError{"Please generate a story first."}
			}
			tool := writer.Tool(*name)
			prompt, err := writer.ToolPrompt(tool, story, *genre)
			if err != nil {
				return usageError{err.Error()}
			}
			return a.text(ctx, story, "", prompt, "Done!", func(out string) string {
				return writer.Merge(tool, story, out)
			})
		}
	case "paragraph":
		topic := fs.String("topic", "", "paragraph topic")
		handler = func(ctx context.Context, a *app) error {
			return a.text(ctx, *topic, "Please enter a topic.",
				writer.ParagraphPrompt(*topic), "Paragraph generated successfully!", nil)
		}
	case "outline":
		topic := fs.String("topic", "", "blog topic")
		tone := fs.String("tone", string(writer.ToneInformative), "outline tone")
		audience := fs.String("audience", "", "target audience")
		handler = func(ctx context.Context, a *app) error {
			return a.text(ctx, *topic, "Please enter a blog topic.",
				writer.BlogOutlinePrompt(*topic, writer.Tone(*tone), *audience),
				"Blog outline generated successfully!", writer.CleanOutline)
		}
	case "image":
		prompt := fs.String("prompt", "", "image description")
		out := fs.String("out", "image.png", "output file")
		handler = func(ctx context.Context, a *app) error { return a.image(ctx, *prompt, *out) }
	case "tts":
		text := fs.String("text", "", "text to speak")
		voice := fs.String("voice", "", "prebuilt voice name, empty for the relay default")
		out := fs.String("out", "speech", "output file, extension added from the audio type")
		handler = func(ctx context.Context, a *app) error { return a.speech(ctx, *text, *voice, *out) }
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}

	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	a := &app{
		caller: aether.NewCaller(relayURL, append([]aether.Option{aether.WithLogger(logger)}, opts...)...),
		stdout: stdout,
		stderr: stderr,
	}
	err := handler(ctx, a)
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		fmt.Fprintln(stderr, ue.Error())
		return 2
	default:
		fmt.Fprintln(stderr, statusLine(err))
		return 1
	}
}

// text runs one text generation. input is what the user typed; an empty
// input prints missing and skips the call.
func (a *app) text(ctx context.Context, input, missing, prompt, success string, post func(string) string) error {
	if missing != "" && strings.TrimSpace(input) == "" {
		return usageError{missing}
	}
	res, err := a.caller.GenerateText(ctx, prompt)
	if err != nil {
		return err
	}
	out := res.Text
	if post != nil {
		out = post(out)
	}
	fmt.Fprintln(a.stdout, out)
	fmt.Fprintf(a.stderr, "%s Word Count: %d\n", success, writer.WordCount(out))
	return nil
}

func (a *app) image(ctx context.Context, prompt, path string) error {
	if strings.TrimSpace(prompt) == "" {
		return usageError{"Please enter an image description."}
	}
	res, err := a.caller.GenerateImage(ctx, prompt)
	if err != nil {
		return err
	}
	b, err := writer.DecodeImage(res.Image)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Image generated successfully! Saved to %s\n", path)
	return nil
}

func (a *app) speech(ctx context.Context, text, voice, path string) error {
	if strings.TrimSpace(text) == "" {
		return usageError{"Please enter some text."}
	}
	res, err := a.caller.GenerateSpeech(ctx, text, voice)
	if err != nil {
		return err
	}
	b, ext, err := writer.DecodeAudio(res.AudioData, res.MimeType)
	if err != nil {
		return err
	}
	if filepath.Ext(path) == "" {
		path += ext
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Speech generated successfully! Saved to %s\n", path)
	return nil
}

// statusLine is the single line shown for a failed command.
func statusLine(err error) string {
	var ce *aether.CallError
	switch {
	case errors.Is(err, moderr.ErrRetriesExhausted):
		return "Failed to connect to the server after multiple retries."
	case errors.As(err, &ce) && ce.Reason == aether.ReasonStatus && ce.Message != "":
		return ce.Message
	case errors.As(err, &ce) && ce.Reason == aether.ReasonStatus:
		return fmt.Sprintf("Server responded with status: %d", ce.Status)
	default:
		return "Sorry, something went wrong. Please ensure the server is running."
	}
}

// usageError is bad input caught before any call; its text is shown as is.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func toolNames() string {
	names := make([]string, len(writer.Tools))
	for i, t := range writer.Tools {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: aether <story|tool|paragraph|outline|image|tts> [flags]")
	fmt.Fprintln(w, "run 'aether <command> -h' for the flags of one command")
}
