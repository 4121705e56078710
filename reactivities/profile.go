package reactivities

import (
	"sync"

	"github.com/golang/glog"
)

// public profile of a user, with the follow relationship relative to the
// session user
type Profile struct {
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	Image          string `json:"image,omitempty"`
	Bio            string `json:"bio,omitempty"`
	Following      bool   `json:"following"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
}

func (self *Profile) Clone() *Profile {
	clone := *self
	return &clone
}

// editable subset of the session user's own profile
type ProfileArgs struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

const (
	FollowPredicateFollowers = "followers"
	FollowPredicateFollowing = "following"
)

// orchestrates the profile detail view: load, edit, follow/unfollow and
// the follow lists. same collaborator wiring as the activity store.
type ProfileStore struct {
	api     *Api
	session Session

	notify NotifyFunction

	stateLock sync.Mutex

	profile    *Profile
	followings []*Profile

	loadingProfile bool
	loading        bool
	submitting     bool

	changeCallbacks *CallbackList[ChangeFunction]
}

func NewProfileStore(api *Api, session Session) *ProfileStore {
	return &ProfileStore{
		api:             api,
		session:         session,
		notify:          func(message string) {},
		changeCallbacks: NewCallbackList[ChangeFunction](),
	}
}

func (self *ProfileStore) SetNotifyFunction(notify NotifyFunction) {
	if notify == nil {
		notify = func(message string) {}
	}
	self.notify = notify
}

func (self *ProfileStore) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *ProfileStore) change() {
	for _, callback := range self.changeCallbacks.Get() {
		callback()
	}
}

// the loaded profile, or nil
func (self *ProfileStore) Profile() *Profile {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.profile == nil {
		return nil
	}
	return self.profile.Clone()
}

func (self *ProfileStore) Followings() []*Profile {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	followings := make([]*Profile, 0, len(self.followings))
	for _, profile := range self.followings {
		followings = append(followings, profile.Clone())
	}
	return followings
}

func (self *ProfileStore) LoadingProfile() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.loadingProfile
}

func (self *ProfileStore) Loading() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.loading
}

func (self *ProfileStore) Submitting() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.submitting
}

// whether the loaded profile belongs to the session user
func (self *ProfileStore) IsCurrentUser() bool {
	user := self.session.User()
	profile := self.Profile()
	return user != nil && profile != nil && user.Username == profile.Username
}

// failure is logged but not surfaced, matching the reference behavior
func (self *ProfileStore) LoadProfile(username string) (*Profile, error) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loadingProfile = true
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.loadingProfile = false
		self.stateLock.Unlock()
		self.change()
	}()

	profile, err := self.api.GetProfileSync(username)
	if err != nil {
		glog.Infof("[pf]load %s error = %s\n", username, err)
		return nil, err
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.profile = profile
		// the follow lists belong to the previous profile
		self.followings = nil
	}()
	self.change()
	return profile.Clone(), nil
}

// edits the session user's own profile. the local record and the session
// user's display name follow the confirmed change.
func (self *ProfileStore) UpdateProfile(args *ProfileArgs) error {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.submitting = true
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.submitting = false
		self.stateLock.Unlock()
		self.change()
	}()

	if err := self.api.UpdateProfileSync(args); err != nil {
		glog.Infof("[pf]update error = %s\n", err)
		self.notify("Error updating profile")
		return err
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.profile != nil {
			self.profile.DisplayName = args.DisplayName
			self.profile.Bio = args.Bio
		}
	}()

	if user := self.session.User(); user != nil && args.DisplayName != user.DisplayName {
		updated := *user
		updated.DisplayName = args.DisplayName
		self.session.SetUser(&updated)
	}
	self.change()
	return nil
}

// the local counters move strictly after server confirmation
func (self *ProfileStore) Follow(username string) error {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loading = true
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.loading = false
		self.stateLock.Unlock()
		self.change()
	}()

	if err := self.api.FollowSync(username); err != nil {
		glog.Infof("[pf]follow %s error = %s\n", username, err)
		self.notify("Problem following user")
		return err
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.profile != nil && self.profile.Username == username {
			self.profile.Following = true
			self.profile.FollowersCount += 1
		}
	}()
	self.change()
	return nil
}

func (self *ProfileStore) Unfollow(username string) error {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loading = true
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.loading = false
		self.stateLock.Unlock()
		self.change()
	}()

	if err := self.api.UnfollowSync(username); err != nil {
		glog.Infof("[pf]unfollow %s error = %s\n", username, err)
		self.notify("Problem unfollowing user")
		return err
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.profile != nil && self.profile.Username == username {
			self.profile.Following = false
			self.profile.FollowersCount -= 1
		}
	}()
	self.change()
	return nil
}

// loads the followers or following list of the loaded profile,
// `predicate` is one of the FollowPredicate values
func (self *ProfileStore) LoadFollowings(predicate string) ([]*Profile, error) {
	var username string
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.profile != nil {
			username = self.profile.Username
		}
	}()
	if username == "" {
		return nil, errNoProfile
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loading = true
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.loading = false
		self.stateLock.Unlock()
		self.change()
	}()

	followings, err := self.api.ListFollowingsSync(username, predicate)
	if err != nil {
		glog.Infof("[pf]followings %s error = %s\n", username, err)
		self.notify("Problem loading followings")
		return nil, err
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.followings = followings
	}()
	self.change()
	return self.Followings(), nil
}
