package reactivities

import (
	"time"

	"golang.org/x/exp/slices"
)

// `IUser`
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token,omitempty"`
	Image       string `json:"image,omitempty"`
}

// `IAttendee`
type Attendee struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image,omitempty"`
	IsHost      bool   `json:"isHost"`
}

func NewAttendee(user *User) *Attendee {
	return &Attendee{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Image:       user.Image,
	}
}

// `IComment`
// comments are append-only. arrival order is display order.
type Comment struct {
	Id          Id        `json:"id,omitempty"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Image       string    `json:"image,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// `IActivity`
type Activity struct {
	Id          Id          `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Date        time.Time   `json:"date"`
	City        string      `json:"city"`
	Venue       string      `json:"venue"`
	Attendees   []*Attendee `json:"attendees"`
	Comments    []*Comment  `json:"comments"`

	// viewer flags. never taken from the server as authoritative,
	// recomputed against the session user whenever the record enters the registry
	IsGoing bool `json:"isGoing"`
	IsHost  bool `json:"isHost"`
}

// recompute `IsGoing`/`IsHost` for the viewing user
func (self *Activity) SetViewer(user *User) {
	self.IsGoing = false
	self.IsHost = false
	if user == nil {
		return
	}
	for _, attendee := range self.Attendees {
		if attendee.Username == user.Username {
			self.IsGoing = true
			self.IsHost = attendee.IsHost
			return
		}
	}
}

func (self *Activity) Attendee(username string) *Attendee {
	for _, attendee := range self.Attendees {
		if attendee.Username == username {
			return attendee
		}
	}
	return nil
}

// deep copy so registry snapshots never alias caller slices
func (self *Activity) Clone() *Activity {
	out := *self
	out.Attendees = make([]*Attendee, len(self.Attendees))
	for i, attendee := range self.Attendees {
		a := *attendee
		out.Attendees[i] = &a
	}
	out.Comments = make([]*Comment, len(self.Comments))
	for i, comment := range self.Comments {
		c := *comment
		out.Comments[i] = &c
	}
	return &out
}

func (self *Activity) removeAttendee(username string) {
	self.Attendees = slices.DeleteFunc(self.Attendees, func(attendee *Attendee) bool {
		return attendee.Username == username
	})
}

// list envelope from the server
type ActivityEnvelope struct {
	Activities    []*Activity `json:"activities"`
	ActivityCount int         `json:"activityCount"`
}

// forms and the server carry the schedule as two values,
// a calendar date and a wall clock time. only the date part of `date`
// and the clock part of `clock` are used.
func CombineDateAndTime(date time.Time, clock time.Time) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0,
		time.Local,
	)
}
