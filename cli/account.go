package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"vidflow/internal/storage"
	"vidflow/internal/stubserver"
	"vidflow/media"
)

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	register := fs.Bool("register", false, "Create the account before logging in")
	usage(fs, "login [flags] <username>\n\nThe password is read from VIDFLOW_PASSWORD or the first line of stdin.")
	username := parseArgs(fs, args, "username")[0]

	password := os.Getenv("VIDFLOW_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fatalf("\nError reading password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()

	auth := media.NewAuth(a.http, storage.TokenFile{Path: a.cfg.TokenFile})
	if *register {
		if err := auth.Register(ctx, username, password); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Account %s created.\n", username)
	}
	if _, err := auth.Login(ctx, username, password); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Logged in as %s. Token saved to %s\n", username, a.cfg.TokenFile)
}

func cmdLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	usage(fs, "logout [flags]")
	fs.Parse(args)

	a := newApp(*cfgPath)
	defer a.close()
	if err := media.NewAuth(a.http, storage.TokenFile{Path: a.cfg.TokenFile}).Logout(); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Fprintln(os.Stderr, "Logged out.")
}

func cmdProfile(args []string) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	usage(fs, "profile [flags]")
	fs.Parse(args)

	a := newApp(*cfgPath)
	defer a.close()
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()

	p, err := media.NewAuth(a.http, nil).Profile(ctx)
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Username: %s\n", p.Username)
	if p.ID != 0 {
		fmt.Printf("ID:       %d\n", p.ID)
	}
}

// cmdDownloads lists the fragments the backend keeps for the user, or fetches
// one of them again with --get.
func cmdDownloads(args []string) {
	fs := flag.NewFlagSet("downloads", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	get := fs.Int64("get", 0, "Download the stored fragment with this id")
	dir := fs.String("dir", ".", "Output directory for --get")
	usage(fs, "downloads [flags]")
	fs.Parse(args)

	a := newApp(*cfgPath)
	defer a.close()
	client := media.NewClient(a.http, media.Options{})

	if *get > 0 {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		art, err := client.DownloadResult(ctx, *get)
		if err != nil {
			fatalf("Error: %v", err)
		}
		path, err := art.Save(*dir)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Saved to %s\n", path)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	list, err := client.UserDownloads(ctx)
	if err != nil {
		fatalf("Error: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No fragments downloaded yet.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTART\tEND\tVIDEO")
	for _, d := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.ID, orDash(d.CreatedAt), orDash(d.StartTime), orDash(d.EndTime), truncate(d.VideoURL, 60))
	}
	w.Flush()
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgPath := commonFlags(fs)
	prune := fs.Duration("prune", 0, "Remove records older than this, e.g. 720h")
	usage(fs, "history [flags]")
	fs.Parse(args)

	a := newApp(*cfgPath)
	defer a.close()
	store, err := storage.NewJSONStore(a.cfg.HistoryFile)
	if err != nil {
		fatalf("Error opening history: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if *prune > 0 {
		n, err := store.PruneDownloads(ctx, time.Now().Add(-*prune))
		if err != nil {
			fatalf("Error pruning history: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Removed %d records.\n", n)
	}

	recs, err := store.ListDownloads(ctx)
	if err != nil {
		fatalf("Error reading history: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("No downloads recorded.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tKIND\tTASK ID\tSTATE\tPROGRESS\tRESULT")
	for _, r := range recs {
		result := r.ArtifactPath
		if r.Error != "" {
			result = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Kind,
			r.TaskID,
			r.State,
			r.Progress,
			truncate(orDash(result), 60),
		)
	}
	w.Flush()
}

func cmdStub(args []string) {
	fs := flag.NewFlagSet("stub", flag.ExitOnError)
	addr := fs.String("addr", "localhost:5000", "Listen address")
	token := fs.String("token", "", "Require this bearer token on protected endpoints")
	users := fs.String("users", "demo:demo", "Comma-separated user:password pairs accepted by /login")
	usage(fs, "stub [flags]")
	fs.Parse(args)

	accounts := make(map[string]string)
	for _, pair := range strings.Split(*users, ",") {
		name, pass, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" {
			continue
		}
		accounts[name] = pass
	}

	srv := stubserver.New(stubserver.Options{Token: *token, Users: accounts, Logger: true})
	fmt.Fprintf(os.Stderr, "Stub backend listening on http://%s/api\n", *addr)
	if err := srv.Run(*addr); err != nil {
		fatalf("Error: %v", err)
	}
}
