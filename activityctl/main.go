package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/Mikastiv/reactivities-spa/reactivities"
)

const ActivityCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Activity control.

The default urls are:
    api_url: https://localhost:5001/api
    chat_url: wss://localhost:5001/chat

Usage:
    activityctl login [--api_url=<api_url>]
        --email=<email>
        --password=<password>
    activityctl register [--api_url=<api_url>]
        --username=<username>
        --display_name=<display_name>
        --email=<email>
        --password=<password>
    activityctl list [--api_url=<api_url>] --jwt=<jwt>
        [--predicate=<predicate>] [--value=<value>] [--page=<page>]
    activityctl create [--api_url=<api_url>] --jwt=<jwt>
        --title=<title>
        --category=<category>
        --date=<date>
        [--description=<description>]
        [--city=<city>]
        [--venue=<venue>]
    activityctl attend [--api_url=<api_url>] --jwt=<jwt> <activity_id>
    activityctl unattend [--api_url=<api_url>] --jwt=<jwt> <activity_id>
    activityctl delete [--api_url=<api_url>] --jwt=<jwt> <activity_id>
    activityctl watch [--api_url=<api_url>] [--chat_url=<chat_url>] --jwt=<jwt>
        <activity_id> [<comment>]
    activityctl profile [--api_url=<api_url>] --jwt=<jwt> <username>
    activityctl follow [--api_url=<api_url>] --jwt=<jwt> <username>
    activityctl unfollow [--api_url=<api_url>] --jwt=<jwt> <username>

Options:
    -h --help                        Show this screen.
    --version                        Show version.
    --api_url=<api_url>
    --chat_url=<chat_url>
    --email=<email>
    --password=<password>
    --username=<username>
    --display_name=<display_name>
    --jwt=<jwt>                      Your session JWT.
    --predicate=<predicate>          all | isGoing | isHost | startDate [default: all]
    --value=<value>                  Predicate value.
    --page=<page>                    Zero-based page [default: 0].
    --title=<title>
    --category=<category>
    --date=<date>                    Schedule instant, RFC3339.
    --description=<description>
    --city=<city>
    --venue=<venue>`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ActivityCtlVersion)
	if err != nil {
		panic(err)
	}

	if login_, _ := opts.Bool("login"); login_ {
		login(opts)
	} else if register_, _ := opts.Bool("register"); register_ {
		register(opts)
	} else if list_, _ := opts.Bool("list"); list_ {
		list(opts)
	} else if create_, _ := opts.Bool("create"); create_ {
		create(opts)
	} else if attend_, _ := opts.Bool("attend"); attend_ {
		attend(opts)
	} else if unattend_, _ := opts.Bool("unattend"); unattend_ {
		unattend(opts)
	} else if delete_, _ := opts.Bool("delete"); delete_ {
		deleteActivity(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	} else if profile_, _ := opts.Bool("profile"); profile_ {
		profile(opts)
	} else if follow_, _ := opts.Bool("follow"); follow_ {
		follow(opts, true)
	} else if unfollow_, _ := opts.Bool("unfollow"); unfollow_ {
		follow(opts, false)
	}
}

func apiUrl(opts docopt.Opts) string {
	if apiUrl_, err := opts.String("--api_url"); err == nil && apiUrl_ != "" {
		return apiUrl_
	}
	return "https://localhost:5001/api"
}

func chatUrl(opts docopt.Opts) string {
	if chatUrl_, err := opts.String("--chat_url"); err == nil && chatUrl_ != "" {
		return chatUrl_
	}
	return "wss://localhost:5001/chat"
}

func newStore(opts docopt.Opts) *reactivities.Store {
	session := reactivities.NewMemorySession()
	if jwt, err := opts.String("--jwt"); err == nil {
		session.SetToken(jwt)
	}

	api := reactivities.NewApi(apiUrl(opts), session.Token)
	dialChannel := reactivities.NewChannelDialer(
		chatUrl(opts),
		session.Token,
		reactivities.DefaultChannelSettings(),
	)

	store := reactivities.NewStoreWithDefaults(api, session, dialChannel)
	store.SetNotifyFunction(func(message string) {
		Err.Printf("%s\n", message)
	})
	return store
}

func login(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	email, _ := opts.String("--email")
	password, _ := opts.String("--password")

	user, err := store.Login(email, password)
	if err != nil {
		Err.Fatalf("Login error = %s\n", err)
	}
	Out.Printf("%s\n", user.Token)
}

func register(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	username, _ := opts.String("--username")
	displayName, _ := opts.String("--display_name")
	email, _ := opts.String("--email")
	password, _ := opts.String("--password")

	user, err := store.Register(&reactivities.RegisterArgs{
		Username:    username,
		DisplayName: displayName,
		Email:       email,
		Password:    password,
	})
	if err != nil {
		Err.Fatalf("Register error = %s\n", err)
	}
	Out.Printf("%s\n", user.Token)
}

func list(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	predicate, _ := opts.String("--predicate")
	var value any
	if value_, err := opts.String("--value"); err == nil {
		value = value_
		if predicate == reactivities.PredicateStartDate {
			startDate, err := time.Parse(time.RFC3339, value_)
			if err != nil {
				Err.Fatalf("Bad start date = %s\n", err)
			}
			value = startDate
		}
	}

	if err := store.SetPredicate(predicate, value); err != nil {
		Err.Fatalf("List error = %s\n", err)
	}

	if page, err := opts.Int("--page"); err == nil && 0 < page {
		store.SetPage(page)
		if err := store.LoadActivities(); err != nil {
			Err.Fatalf("List error = %s\n", err)
		}
	}

	for _, group := range store.GroupedByDate() {
		Out.Printf("%s\n", group.Date)
		for _, activity := range group.Activities {
			Out.Printf("  %s %s [%s] %s\n", activity.Id, activity.Date.Format("15:04"), activity.Category, activity.Title)
		}
	}
	Out.Printf("page %d/%d\n", store.Page()+1, store.TotalPages())
}

func create(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	title, _ := opts.String("--title")
	category, _ := opts.String("--category")
	description, _ := opts.String("--description")
	city, _ := opts.String("--city")
	venue, _ := opts.String("--venue")

	dateStr, _ := opts.String("--date")
	date, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		Err.Fatalf("Bad date = %s\n", err)
	}

	activity := &reactivities.Activity{
		Title:       title,
		Category:    category,
		Description: description,
		City:        city,
		Venue:       venue,
		Date:        reactivities.CombineDateAndTime(date, date),
	}
	if err := store.CreateActivity(activity); err != nil {
		Err.Fatalf("Create error = %s\n", err)
	}
	Out.Printf("%s\n", activity.Id)
}

func activityId(opts docopt.Opts) reactivities.Id {
	idStr, _ := opts.String("<activity_id>")
	id, err := reactivities.ParseId(idStr)
	if err != nil {
		Err.Fatalf("Bad activity id = %s\n", err)
	}
	return id
}

func attend(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	if _, err := store.LoadActivity(activityId(opts)); err != nil {
		Err.Fatalf("Load error = %s\n", err)
	}
	if err := store.Attend(); err != nil {
		Err.Fatalf("Attend error = %s\n", err)
	}
	Out.Printf("going\n")
}

func unattend(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	if _, err := store.LoadActivity(activityId(opts)); err != nil {
		Err.Fatalf("Load error = %s\n", err)
	}
	if err := store.Unattend(); err != nil {
		Err.Fatalf("Unattend error = %s\n", err)
	}
	Out.Printf("not going\n")
}

func deleteActivity(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	if err := store.DeleteActivity(activityId(opts)); err != nil {
		Err.Fatalf("Delete error = %s\n", err)
	}
	Out.Printf("deleted\n")
}

func newProfileStore(opts docopt.Opts) *reactivities.ProfileStore {
	session := reactivities.NewMemorySession()
	if jwt, err := opts.String("--jwt"); err == nil {
		session.SetToken(jwt)
	}

	api := reactivities.NewApi(apiUrl(opts), session.Token)
	store := reactivities.NewProfileStore(api, session)
	store.SetNotifyFunction(func(message string) {
		Err.Printf("%s\n", message)
	})
	return store
}

func profile(opts docopt.Opts) {
	store := newProfileStore(opts)

	username, _ := opts.String("<username>")
	p, err := store.LoadProfile(username)
	if err != nil {
		Err.Fatalf("Profile error = %s\n", err)
	}

	Out.Printf("%s (%s)\n", p.DisplayName, p.Username)
	if p.Bio != "" {
		Out.Printf("%s\n", p.Bio)
	}
	Out.Printf("followers %d, following %d\n", p.FollowersCount, p.FollowingCount)

	followers, err := store.LoadFollowings(reactivities.FollowPredicateFollowers)
	if err != nil {
		Err.Fatalf("Followers error = %s\n", err)
	}
	for _, follower := range followers {
		Out.Printf("  follower %s (%s)\n", follower.DisplayName, follower.Username)
	}
}

func follow(opts docopt.Opts, following bool) {
	store := newProfileStore(opts)

	username, _ := opts.String("<username>")
	if following {
		if err := store.Follow(username); err != nil {
			Err.Fatalf("Follow error = %s\n", err)
		}
		Out.Printf("following %s\n", username)
	} else {
		if err := store.Unfollow(username); err != nil {
			Err.Fatalf("Unfollow error = %s\n", err)
		}
		Out.Printf("not following %s\n", username)
	}
}

// joins the activity's comment group and prints comments as they arrive.
// with a <comment> argument, also sends one.
func watch(opts docopt.Opts) {
	store := newStore(opts)
	defer store.Close()

	activity, err := store.LoadActivity(activityId(opts))
	if err != nil {
		Err.Fatalf("Load error = %s\n", err)
	}

	// the callback fires on every store change, not just comment arrivals,
	// so track how many comments were already printed
	printed := len(activity.Comments)
	var printLock sync.Mutex
	done := store.AddChangeCallback(func() {
		printLock.Lock()
		defer printLock.Unlock()
		a := store.Activity()
		if a == nil {
			return
		}
		for ; printed < len(a.Comments); printed += 1 {
			comment := a.Comments[printed]
			Out.Printf("%s %s: %s\n", comment.CreatedAt.Format(time.RFC3339), comment.DisplayName, comment.Body)
		}
	})
	defer done()

	if err := store.OpenChannel(); err != nil {
		Err.Fatalf("Channel error = %s\n", err)
	}
	defer store.CloseChannel()

	Out.Printf("watching %s (%s)\n", activity.Title, activity.Id)

	if comment, err := opts.String("<comment>"); err == nil && comment != "" {
		if err := store.AddComment(comment); err != nil {
			Err.Fatalf("Comment error = %s\n", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	fmt.Fprintln(os.Stderr, "bye")
}
