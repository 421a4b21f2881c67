package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/atinyakov/TagLock/internal/client"
)

var (
	version   string
	buildDate string
)

const help = `Available commands:
  add <name> [selection-file]        create a profile
  list                               list profiles
  edit <id> <name> [selection-file]  rename a profile and replace its selection
  delete <id>...                     delete profiles
  write <id>                         write a profile to the tag on the reader
  scan [tag-file]                    scan the tag on the reader, or a saved tag image
  unlock                             spend one emergency unlock
  status                             show the lock status
  exit`

// shell runs the interactive loop against the server.
type shell struct {
	api *client.Client
	out io.Writer
}

func (s *shell) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "taglock> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			fmt.Fprintln(s.out, "Bye")
			return
		}
		if err := s.exec(ctx, args); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

func (s *shell) exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, help)
	case "add":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: add <name> [selection-file]")
			return nil
		}
		sel, err := client.ReadSelection(arg(args, 2))
		if err != nil {
			return err
		}
		p, err := s.api.AddProfile(ctx, args[1], sel)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Profile %q created: %s\n", p.Name, p.ID)
	case "list":
		return s.list(ctx)
	case "edit":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "Usage: edit <id> <name> [selection-file]")
			return nil
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}
		sel, err := client.ReadSelection(arg(args, 3))
		if err != nil {
			return err
		}
		if err := s.api.EditProfile(ctx, id, args[2], sel); err != nil {
			if client.IsConflict(err) {
				fmt.Fprintln(s.out, "Profile is locked; unlock it before editing")
				return nil
			}
			return err
		}
		fmt.Fprintln(s.out, "Profile updated")
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: delete <id>...")
			return nil
		}
		ids := make([]uuid.UUID, 0, len(args)-1)
		for _, a := range args[1:] {
			id, err := uuid.Parse(a)
			if err != nil {
				return fmt.Errorf("invalid id %q", a)
			}
			ids = append(ids, id)
		}
		removed, err := s.api.DeleteProfiles(ctx, ids)
		fmt.Fprintf(s.out, "Deleted %d profile(s)\n", len(removed))
		if client.IsConflict(err) {
			fmt.Fprintln(s.out, "The locked profile was kept")
			return nil
		}
		return err
	case "write":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: write <id>")
			return nil
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}
		fmt.Fprintln(s.out, "Hold the tag near the reader...")
		if err := s.api.WriteTag(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Tag written")
	case "scan":
		var (
			res client.ScanResult
			err error
		)
		if path := arg(args, 1); path != "" {
			raw, rerr := os.ReadFile(path)
			if rerr != nil {
				return rerr
			}
			res, err = s.api.Scan(ctx, raw)
		} else {
			fmt.Fprintln(s.out, "Hold the tag near the reader...")
			res, err = s.api.ScanTag(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, res.Message)
	case "unlock":
		st, err := s.api.EmergencyUnlock(ctx)
		if client.IsConflict(err) {
			fmt.Fprintln(s.out, "Emergency unlock not available")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Unlocked. Emergency unlocks remaining: %d\n", st.EmergencyUnlocksRemaining)
	case "status":
		st, err := s.api.Status(ctx)
		if err != nil {
			return err
		}
		if st.Locked {
			fmt.Fprintf(s.out, "Locked with %q (%s)\n", st.ProfileName, st.ProfileID)
		} else {
			fmt.Fprintln(s.out, "Unlocked")
		}
		fmt.Fprintf(s.out, "Emergency unlocks remaining: %d\n", st.EmergencyUnlocksRemaining)
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

func (s *shell) list(ctx context.Context) error {
	profiles, err := s.api.Profiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Fprintln(s.out, "No profiles")
		return nil
	}
	st, err := s.api.Status(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSELECTION\t")
	for _, p := range profiles {
		name := p.Name
		if st.Locked && st.ProfileID == p.ID.String() {
			name += " (locked)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d bytes\t\n", p.ID, name, len(p.Selection))
	}
	return tw.Flush()
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func main() {
	var (
		baseURL  string
		certFile string
		keyFile  string
		caFile   string
		showVer  bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&certFile, "cert", "", "path to client cert")
	flag.StringVar(&keyFile, "key", "", "path to client key")
	flag.StringVar(&caFile, "ca", "", "path to CA cert")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("TagLock Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	httpClient, err := client.NewHTTPClient(certFile, keyFile, caFile)
	if err != nil {
		log.Fatal(err)
	}

	sh := &shell{api: client.New(httpClient, baseURL), out: os.Stdout}
	sh.run(context.Background(), os.Stdin)
}
