// Package cli implements sosrec, the device-side command line client. It
// runs the same gate, record, upload and notify pipeline as the server
// against the backing stores, with the microphone as capture device.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/tbourn/go-sos-backend/internal/auth"
	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/services"
)

// App holds the services a command needs. Unset services disable the
// commands that use them.
type App struct {
	UserID string

	Sessions   *services.SessionService
	Permission capture.Permission
	Recordings *services.RecordingService
	Contacts   *services.ContactService
	Dispatch   *services.DispatchService
	Issuer     *auth.Issuer
	// Devices lists the capture devices of the platform.
	Devices func() ([]string, error)

	In  io.Reader
	Out io.Writer
}

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage")

const usage = `usage: sosrec [-user id] <command> [flags]

commands:
  record                       toggle a recording with Enter, then upload and notify
  list                         list uploaded recordings
  url <name>                   print the playback URL of a recording
  rm <name>                    delete a recording
  dispatch -lat <f> -lng <f>   send the location to the emergency contact
  contacts [add|rm|clear|search]
  numbers                      emergency numbers directory
  devices                      list capture devices
  token                        print a bearer token for the user
`

// Run parses args (without the program name) and executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sosrec", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	fs.Usage = func() { fmt.Fprint(a.Out, usage) }
	user := fs.String("user", a.UserID, "user id")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	a.UserID = strings.TrimSpace(*user)
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return ErrUsage
	}

	cmd, cargs := rest[0], rest[1:]
	switch cmd {
	case "record":
		return a.record(ctx)
	case "list":
		return a.list(ctx)
	case "url":
		return a.url(ctx, cargs)
	case "rm":
		return a.remove(ctx, cargs)
	case "dispatch":
		return a.dispatch(ctx, cargs)
	case "contacts":
		return a.contacts(ctx, cargs)
	case "numbers":
		return a.numbers()
	case "devices":
		return a.devices()
	case "token":
		return a.token()
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

// record drives one session: Enter starts, Enter stops, then the pipeline
// runs in the foreground while progress is printed.
func (a *App) record(ctx context.Context) error {
	if a.Sessions == nil {
		return errors.New("recording is not configured")
	}
	in := bufio.NewScanner(a.In)

	a.printf("Press Enter to start recording.\n")
	if !in.Scan() {
		return io.ErrUnexpectedEOF
	}
	if _, err := a.Sessions.Start(ctx, a.UserID, a.Permission); err != nil {
		return err
	}
	a.printf("Recording... press Enter to stop.\n")
	if !in.Scan() {
		// Input closed while recording; still finalize the capture.
		a.printf("input closed, stopping\n")
	}

	events, cancel := a.Sessions.Subscribe(a.UserID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := -1
		for snap := range events {
			if snap.Phase != domain.PhaseUploading {
				continue
			}
			if pct := int(snap.Progress * 100); pct != last {
				last = pct
				a.printf("\ruploading %3d%%", pct)
			}
		}
	}()

	res, err := a.Sessions.StopAndProcess(ctx, a.UserID)
	cancel()
	<-done
	a.printf("\n")

	if res.Task.State != domain.UploadSucceeded {
		if err == nil {
			err = services.ErrUploadFailed
		}
		return err
	}
	a.printf("uploaded %s\n%s\n", res.Task.Key, res.Task.URL)
	if err != nil {
		a.printf("call record not written: %v\n", err)
		return nil
	}
	if res.Call != nil {
		a.printf("call record %s at %s\n", res.Call.ID, res.Call.Local)
	}
	return nil
}

func (a *App) list(ctx context.Context) error {
	if a.Recordings == nil {
		return errors.New("recordings are not configured")
	}
	items, err := a.Recordings.List(ctx, a.UserID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.printf("no recordings\n")
		return nil
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tCREATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", it.Name, it.Size, it.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func (a *App) url(ctx context.Context, args []string) error {
	if a.Recordings == nil {
		return errors.New("recordings are not configured")
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: url <name>", ErrUsage)
	}
	u, err := a.Recordings.URL(ctx, a.UserID, args[0])
	if err != nil {
		return err
	}
	a.printf("%s\n", u)
	return nil
}

func (a *App) remove(ctx context.Context, args []string) error {
	if a.Recordings == nil {
		return errors.New("recordings are not configured")
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: rm <name>", ErrUsage)
	}
	if err := a.Recordings.Delete(ctx, a.UserID, args[0]); err != nil {
		return err
	}
	a.printf("deleted %s\n", args[0])
	return nil
}

func (a *App) dispatch(ctx context.Context, args []string) error {
	if a.Dispatch == nil {
		return errors.New("dispatch is not configured")
	}
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	var loc capture.Locator = capture.Fixed{Latitude: *lat, Longitude: *lng}
	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	if !seen["lat"] || !seen["lng"] {
		loc = capture.LocatorFunc(func(context.Context) (capture.Location, error) {
			return capture.Location{}, capture.ErrNoFix
		})
	}

	d, err := a.Dispatch.Dispatch(ctx, a.UserID, loc)
	if err != nil {
		if errors.Is(err, services.ErrNoEmergencyContact) || errors.Is(err, services.ErrLocationUnavailable) {
			a.printf("%s\n", userMessage(err))
		}
		return err
	}
	a.printf("sending location to %s (%s)\n%s\n", d.Contact, d.Phone, d.Link)
	return nil
}

// userMessage picks the user-facing sentinel out of a joined error.
func userMessage(err error) string {
	for _, s := range []error{services.ErrNoEmergencyContact, services.ErrLocationUnavailable} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

func (a *App) contacts(ctx context.Context, args []string) error {
	if a.Contacts == nil {
		return errors.New("contacts are not configured")
	}
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		list, err := a.Contacts.List(ctx, a.UserID)
		if err != nil {
			return err
		}
		a.printContacts(list)
		return nil

	case "search":
		term := strings.Join(args, " ")
		list, err := a.Contacts.List(ctx, a.UserID)
		if err != nil {
			return err
		}
		a.printContacts(services.Search(list, term))
		return nil

	case "add":
		fs := flag.NewFlagSet("contacts add", flag.ContinueOnError)
		fs.SetOutput(a.Out)
		id := fs.String("id", "", "contact id (generated when empty)")
		name := fs.String("name", "", "display name")
		phone := fs.String("phone", "", "phone number")
		if err := fs.Parse(args); err != nil {
			return ErrUsage
		}
		c := domain.EmergencyContact{ID: *id, Name: *name}
		if *phone != "" {
			c.PhoneNumbers = []domain.PhoneNumber{{Number: *phone}}
		}
		if _, err := a.Contacts.Add(ctx, a.UserID, c); err != nil {
			if errors.Is(err, services.ErrContactExists) {
				a.printf("%s\n", services.ContactExistsMessage(c.Name))
			}
			return err
		}
		a.printf("%s\n", services.ContactAddedMessage(c.Name))
		return nil

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("%w: contacts rm <index>", ErrUsage)
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("%w: invalid index %q", ErrUsage, args[0])
		}
		list, err := a.Contacts.Remove(ctx, a.UserID, idx)
		if err != nil {
			return err
		}
		a.printContacts(list)
		return nil

	case "clear":
		return a.Contacts.Clear(ctx, a.UserID)

	default:
		return fmt.Errorf("%w: unknown contacts command %q", ErrUsage, sub)
	}
}

func (a *App) printContacts(list []domain.EmergencyContact) {
	if len(list) == 0 {
		a.printf("no contacts\n")
		return
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tPHONE")
	for i, c := range list {
		num, _ := c.PrimaryNumber()
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, c.Name, num)
	}
	_ = tw.Flush()
}

func (a *App) numbers() error {
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, n := range services.EmergencyNumbers() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n.Number, n.Name, n.Link)
	}
	return tw.Flush()
}

func (a *App) devices() error {
	if a.Devices == nil {
		return errors.New("no capture backend")
	}
	names, err := a.Devices()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		a.printf("no capture devices\n")
	}
	for _, n := range names {
		a.printf("%s\n", n)
	}
	return nil
}

func (a *App) token() error {
	if a.Issuer == nil {
		return errors.New("JWT_SECRET is not set")
	}
	tok, err := a.Issuer.GenerateToken(a.UserID)
	if err != nil {
		return err
	}
	a.printf("%s\n", tok)
	return nil
}
