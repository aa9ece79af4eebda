// Command kindred is a terminal client for the Kindred backend: sign in,
// browse the inbox and chat from a shell.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Ibeneme/kindred-app-sub000/internal/api"
	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/chat"
	"github.com/Ibeneme/kindred-app-sub000/internal/config"
	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
	"github.com/Ibeneme/kindred-app-sub000/internal/session"
	"github.com/Ibeneme/kindred-app-sub000/internal/socketio"
)

const usage = `usage: kindred <command> [args]

  register <first> <last> <email> <password>   create an account
  verify <email> <code>                        confirm the emailed code
  login <email> <password>                     sign in and store the session
  logout                                       drop the stored session
  me                                           show the signed-in profile
  search <query>                               find users by name or email
  families [create <name> | join <code> | members <id>]
  conversations                                show the inbox
  chat <conversationId> <partnerId>            open a thread
`

type app struct {
	cfg    config.ClientConfig
	client *api.Client
	store  *session.SecureStore
	guard  *session.Guard
	log    *logger.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClientConfig()
	if err != nil {
		fatal(err)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	store, err := session.OpenSecureStore(cfg.StateDir)
	if err != nil {
		fatal(err)
	}
	guard := session.NewGuard(store, func() {
		fmt.Fprintln(os.Stderr, "session expired, please log in again")
	}, zl)

	a := &app{cfg: cfg, client: api.New(cfg.APIBaseURL, guard, zl), store: store, guard: guard, log: zl}
	ctx := context.Background()

	var cmdErr error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "register":
		cmdErr = a.register(ctx, args)
	case "verify":
		cmdErr = a.verify(ctx, args)
	case "login":
		cmdErr = a.login(ctx, args)
	case "logout":
		a.guard.SignOut()
		fmt.Println("signed out")
	case "me":
		cmdErr = a.me(ctx)
	case "search":
		cmdErr = a.search(ctx, args)
	case "families":
		cmdErr = a.families(ctx, args)
	case "conversations":
		cmdErr = a.conversations()
	case "chat":
		cmdErr = a.chat(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if cmdErr != nil {
		fatal(cmdErr)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "kindred:", err)
	os.Exit(1)
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: kindred register <first> <last> <email> <password>")
	}
	err := a.client.Register(ctx, api.RegisterRequest{
		FirstName: args[0], LastName: args[1], Email: args[2], Password: args[3],
	})
	if err != nil {
		return err
	}
	fmt.Println("check your email for a verification code, then run: kindred verify", args[2], "<code>")
	return nil
}

func (a *app) verify(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: kindred verify <email> <code>")
	}
	if err := a.client.VerifyOTP(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Println("account verified, you can log in now")
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: kindred login <email> <password>")
	}
	res, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	_ = a.store.Set(session.KeyDisplayName, res.User.FullName())
	fmt.Printf("signed in as %s\n", res.User.FullName())
	return nil
}

func (a *app) me(ctx context.Context) error {
	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> id=%s\n", user.FullName(), user.Email, user.ID)
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: kindred search <query>")
	}
	users, err := a.client.SearchUsers(ctx, args[0])
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s  %s  %s\n", u.ID, u.FullName(), u.Email)
	}
	return nil
}

func (a *app) families(ctx context.Context, args []string) error {
	if len(args) == 0 {
		families, err := a.client.ListFamilies(ctx)
		if err != nil {
			return err
		}
		for _, f := range families {
			fmt.Printf("%s  %s  (join code %s)\n", f.ID, f.Name, f.JoinCode)
		}
		return nil
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: kindred families create <name>")
		}
		f, err := a.client.CreateFamily(ctx, strings.Join(args[1:], " "), "")
		if err != nil {
			return err
		}
		fmt.Printf("created %s, share join code %s\n", f.Name, f.JoinCode)
		return nil
	case "join":
		if len(args) != 2 {
			return fmt.Errorf("usage: kindred families join <code>")
		}
		f, err := a.client.JoinFamily(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("joined %s\n", f.Name)
		return nil
	case "members":
		if len(args) != 2 {
			return fmt.Errorf("usage: kindred families members <id>")
		}
		members, err := a.client.FamilyMembers(ctx, args[1])
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Printf("%s  %s\n", m.ID, m.FullName())
		}
		return nil
	default:
		return fmt.Errorf("unknown families subcommand %q", args[0])
	}
}

// identity resolves who we are from the stored credential.
func (a *app) identity() (userID, name string, err error) {
	cred, ok := a.guard.LoadCredential()
	if !ok {
		return "", "", fmt.Errorf("not signed in, run: kindred login <email> <password>")
	}
	claims, err := auth.DecodeCredential(cred)
	if err != nil {
		return "", "", err
	}
	name, _ = a.store.Get(session.KeyDisplayName)
	return claims.UserID, name, nil
}

func (a *app) dialSocket() (*socketio.Client, string, string, error) {
	userID, name, err := a.identity()
	if err != nil {
		return nil, "", "", err
	}
	cred, _ := a.guard.LoadCredential()
	sock, err := socketio.Dial(socketio.DialOptions{URL: a.cfg.SocketURL, Token: cred}, a.log)
	if err != nil {
		return nil, "", "", err
	}
	return sock, userID, name, nil
}

func (a *app) conversations() error {
	sock, userID, _, err := a.dialSocket()
	if err != nil {
		return err
	}
	defer sock.Close()

	agg := chat.NewAggregator(sock, userID, a.log)
	agg.Start()
	defer agg.Stop()
	if err := agg.Focus(); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for agg.Phase() != chat.PhaseReady {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for the conversation list")
		}
		time.Sleep(20 * time.Millisecond)
	}

	list := agg.Conversations()
	if len(list) == 0 {
		fmt.Println("no conversations yet")
		return nil
	}
	for _, conv := range list {
		marker := " "
		if conv.Unread > 0 {
			marker = fmt.Sprintf("(%d)", conv.Unread)
		}
		fmt.Printf("%s %s  %s: %s\n", marker, conv.ID, conv.Name, conv.LastMessage)
	}
	fmt.Printf("total unread: %d\n", agg.TotalUnread())
	return nil
}

func (a *app) chat(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: kindred chat <conversationId> <partnerId>")
	}
	sock, userID, name, err := a.dialSocket()
	if err != nil {
		return err
	}
	defer sock.Close()

	thread, err := chat.JoinThread(sock, args[0], userID, name, args[1])
	if err != nil {
		return err
	}
	defer thread.Leave()

	// Give the history replay a moment, then print it.
	time.Sleep(500 * time.Millisecond)
	for _, msg := range thread.Messages() {
		printMessage(msg.SenderID == userID, msg.SenderName, msg.Body)
	}

	fmt.Println("type a message and press enter; /quit leaves")
	go func() {
		known := len(thread.Messages())
		for {
			select {
			case <-sock.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			msgs := thread.Messages()
			for ; known < len(msgs); known++ {
				if msgs[known].SenderID != userID {
					printMessage(false, msgs[known].SenderName, msgs[known].Body)
				}
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if _, err := thread.Send(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printMessage(self bool, sender, body string) {
	if self {
		fmt.Printf("  you: %s\n", body)
		return
	}
	if sender == "" {
		sender = "them"
	}
	fmt.Printf("  %s: %s\n", sender, body)
}
