package reactivities

import (
	"context"
	"net/url"
	"sync"

	"github.com/golang/glog"
)

type NotifyFunction = func(message string)
type NavigateFunction = func(activityId Id)

type StoreSettings struct {
	PageLimit int
}

func DefaultStoreSettings() *StoreSettings {
	return &StoreSettings{
		PageLimit: DefaultLimit,
	}
}

// orchestrates the registry, the fetch protocol, the mutation protocol
// and the realtime merge. collaborators are injected, the store owns no
// ambient state.
type Store struct {
	ctx    context.Context
	cancel context.CancelFunc

	api         *Api
	session     Session
	dialChannel ChannelDialFunc

	settings *StoreSettings

	notify   NotifyFunction
	navigate NavigateFunction

	registry *Registry

	stateLock sync.Mutex

	// serializes a predicate change (epoch bump + registry clear) against
	// the application of a landed list result, so the epoch check and the
	// upserts it guards are one atomic step.
	applyLock sync.Mutex

	predicate  *Predicate
	pagination *Pagination

	// active detail record
	activityId Id

	channel               Channel
	removeCommentCallback func()

	loadingInitial bool
	submitting     bool
	loading        bool
	// which record's delete is in flight
	target Id

	// bumped on every predicate change. list results from an older
	// epoch are discarded instead of landing next to newer results.
	epoch int

	changeCallbacks *CallbackList[ChangeFunction]
}

func NewStoreWithDefaults(api *Api, session Session, dialChannel ChannelDialFunc) *Store {
	return NewStore(context.Background(), api, session, dialChannel, DefaultStoreSettings())
}

func NewStore(
	ctx context.Context,
	api *Api,
	session Session,
	dialChannel ChannelDialFunc,
	settings *StoreSettings,
) *Store {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &Store{
		ctx:             cancelCtx,
		cancel:          cancel,
		api:             api,
		session:         session,
		dialChannel:     dialChannel,
		settings:        settings,
		notify:          func(message string) {},
		navigate:        func(activityId Id) {},
		registry:        NewRegistry(),
		predicate:       NewPredicate(),
		pagination:      NewPagination(settings.PageLimit),
		changeCallbacks: NewCallbackList[ChangeFunction](),
	}
}

// user-visible failure notifications (toasts in the reference app)
func (self *Store) SetNotifyFunction(notify NotifyFunction) {
	if notify == nil {
		notify = func(message string) {}
	}
	self.notify = notify
}

// navigation to the detail view after create/edit
func (self *Store) SetNavigateFunction(navigate NavigateFunction) {
	if navigate == nil {
		navigate = func(activityId Id) {}
	}
	self.navigate = navigate
}

func (self *Store) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *Store) change() {
	for _, callback := range self.changeCallbacks.Get() {
		callback()
	}
}

func (self *Store) Registry() *Registry {
	return self.registry
}

func (self *Store) GroupedByDate() []DateGroup {
	return self.registry.GroupedByDate()
}

func (self *Store) LoadingInitial() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.loadingInitial
}

func (self *Store) Submitting() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.submitting
}

func (self *Store) Loading() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.loading
}

func (self *Store) Target() Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.target
}

func (self *Store) Page() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.pagination.Page()
}

func (self *Store) SetPage(page int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.pagination.SetPage(page)
}

func (self *Store) TotalPages() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.pagination.TotalPages()
}

func (self *Store) HasMore() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.pagination.HasMore()
}

func (self *Store) ActivityId() Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.activityId
}

// the active detail record, or nil
func (self *Store) Activity() *Activity {
	self.stateLock.Lock()
	activityId := self.activityId
	self.stateLock.Unlock()

	if activityId.IsZero() {
		return nil
	}
	return self.registry.Get(activityId)
}

func (self *Store) ClearActivity() {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.activityId = Id{}
	}()
	self.change()
}

// stale pages under the old predicate must never show under the new one:
// page resets to 0 and the registry is emptied before the refetch.
func (self *Store) SetPredicate(key string, value any) error {
	func() {
		self.applyLock.Lock()
		defer self.applyLock.Unlock()

		func() {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			self.predicate.Set(key, value)
			self.pagination.Reset()
			self.epoch += 1
		}()
		self.registry.Clear()
	}()
	self.change()
	return self.LoadActivities()
}

func (self *Store) LoadActivities() error {
	var query url.Values
	var epoch int
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loadingInitial = true
		epoch = self.epoch
		query = self.pagination.Query(self.predicate)
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.loadingInitial = false
		self.stateLock.Unlock()
		self.change()
	}()

	envelope, err := self.api.ListActivitiesSync(query)
	if err != nil {
		glog.Infof("[st]list error = %s\n", err)
		self.notify("Problem loading activities")
		return err
	}

	stale := false
	func() {
		self.applyLock.Lock()
		defer self.applyLock.Unlock()

		func() {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			if epoch != self.epoch {
				stale = true
				return
			}
			self.pagination.SetTotal(envelope.ActivityCount)
		}()
		if stale {
			return
		}

		user := self.session.User()
		for _, activity := range envelope.Activities {
			activity.SetViewer(user)
			self.registry.Upsert(activity)
		}
	}()
	if stale {
		glog.V(1).Infof("[st]drop stale list epoch=%d\n", epoch)
		return nil
	}
	self.change()
	return nil
}

// cache first. a record already in the registry is assumed fresh for the
// session unless a mutation or realtime event updates it.
func (self *Store) LoadActivity(activityId Id) (*Activity, error) {
	if activity := self.registry.Get(activityId); activity != nil {
		func() {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			self.activityId = activityId
		}()
		self.change()
		return activity, nil
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loadingInitial = true
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.loadingInitial = false
		self.stateLock.Unlock()
		self.change()
	}()

	activity, err := self.api.GetActivitySync(activityId)
	if err != nil {
		glog.Infof("[st]load %s error = %s\n", activityId, err)
		if !IsNotFound(err) {
			self.notify("Problem loading activity")
		}
		// absent result, the caller decides what a missing record means
		return nil, err
	}

	activity.SetViewer(self.session.User())
	self.registry.Upsert(activity)
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.activityId = activity.Id
	}()
	self.change()
	return activity.Clone(), nil
}

// the id is assigned client side before the call so navigation to the
// detail view does not wait for the server
func (self *Store) CreateActivity(activity *Activity) error {
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

	if activity.Id.IsZero() {
		activity.Id = NewId()
	}

	if err := self.api.CreateActivitySync(activity); err != nil {
		glog.Infof("[st]create %s error = %s\n", activity.Id, err)
		self.notify("Problem submitting data")
		return err
	}

	user := self.session.User()
	attendee := NewAttendee(user)
	attendee.IsHost = true
	activity.Attendees = []*Attendee{attendee}
	activity.Comments = []*Comment{}
	activity.IsHost = true
	activity.IsGoing = true

	self.registry.Upsert(activity)
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.activityId = activity.Id
	}()
	self.change()
	self.navigate(activity.Id)
	return nil
}

func (self *Store) EditActivity(activity *Activity) error {
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

	if err := self.api.UpdateActivitySync(activity); err != nil {
		glog.Infof("[st]edit %s error = %s\n", activity.Id, err)
		self.notify("Problem submitting data")
		return err
	}

	activity.SetViewer(self.session.User())
	self.registry.Upsert(activity)
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.activityId = activity.Id
	}()
	self.change()
	self.navigate(activity.Id)
	return nil
}

// failure is logged but not surfaced, matching the reference behavior.
// `Target` lets the ui show a per-item busy indicator.
func (self *Store) DeleteActivity(activityId Id) error {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.submitting = true
		self.target = activityId
	}()
	self.change()
	defer func() {
		self.stateLock.Lock()
		self.submitting = false
		self.target = Id{}
		self.stateLock.Unlock()
		self.change()
	}()

	if err := self.api.DeleteActivitySync(activityId); err != nil {
		glog.Infof("[st]delete %s error = %s\n", activityId, err)
		return err
	}

	self.registry.Remove(activityId)
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.activityId == activityId {
			self.activityId = Id{}
		}
	}()
	self.change()
	return nil
}

// the local mutation is applied strictly after server confirmation
func (self *Store) Attend() error {
	activity := self.Activity()
	if activity == nil {
		return errNoActiveActivity
	}
	user := self.session.User()
	if user == nil {
		return errNoSessionUser
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

	if err := self.api.AttendSync(activity.Id); err != nil {
		glog.Infof("[st]attend %s error = %s\n", activity.Id, err)
		self.notify("Problem signing up to the activity")
		return err
	}

	// splice into the live record. a wholesale upsert of the snapshot
	// taken before the call would erase comments that arrived meanwhile.
	self.registry.Update(activity.Id, func(stored *Activity) {
		if stored.Attendee(user.Username) == nil {
			stored.Attendees = append(stored.Attendees, NewAttendee(user))
		}
		stored.IsGoing = true
	})
	self.change()
	return nil
}

func (self *Store) Unattend() error {
	activity := self.Activity()
	if activity == nil {
		return errNoActiveActivity
	}
	user := self.session.User()
	if user == nil {
		return errNoSessionUser
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

	if err := self.api.UnattendSync(activity.Id); err != nil {
		glog.Infof("[st]unattend %s error = %s\n", activity.Id, err)
		self.notify("Problem cancelling attendance")
		return err
	}

	self.registry.Update(activity.Id, func(stored *Activity) {
		stored.removeAttendee(user.Username)
		stored.IsGoing = false
	})
	self.change()
	return nil
}

// opens the comment channel for the active record. connect failures are
// logged and non-fatal to the rest of the store.
func (self *Store) OpenChannel() error {
	var activityId Id
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		activityId = self.activityId
	}()
	if activityId.IsZero() {
		return errNoActiveActivity
	}

	// one channel at a time
	self.CloseChannel()

	channel, err := self.dialChannel(self.ctx, activityId)
	if err != nil {
		glog.Infof("[st]channel connect %s error = %s\n", activityId, err)
		return err
	}

	removeCommentCallback := channel.AddCommentCallback(func(comment *Comment) {
		self.receiveComment(activityId, comment)
	})

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.channel = channel
		self.removeCommentCallback = removeCommentCallback
	}()
	return nil
}

func (self *Store) CloseChannel() {
	var channel Channel
	var removeCommentCallback func()
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		channel = self.channel
		removeCommentCallback = self.removeCommentCallback
		self.channel = nil
		self.removeCommentCallback = nil
	}()

	if removeCommentCallback != nil {
		removeCommentCallback()
	}
	if channel != nil {
		channel.Close()
	}
}

// outbound comments do not touch local state. the author's copy arrives
// back through the inbound event path, one code path for all comments.
func (self *Store) AddComment(body string) error {
	self.stateLock.Lock()
	channel := self.channel
	self.stateLock.Unlock()

	if channel == nil {
		return errNoChannel
	}
	if err := channel.SendComment(body); err != nil {
		glog.Infof("[st]send comment error = %s\n", err)
		return err
	}
	return nil
}

// comments append to the live record in arrival order
func (self *Store) receiveComment(activityId Id, comment *Comment) {
	applied := self.registry.Update(activityId, func(activity *Activity) {
		activity.Comments = append(activity.Comments, comment)
	})
	if !applied {
		glog.V(1).Infof("[st]comment for unknown activity %s\n", activityId)
		return
	}
	self.change()
}

func (self *Store) Login(email string, password string) (*User, error) {
	user, err := self.api.LoginSync(&LoginArgs{
		Email:    email,
		Password: password,
	})
	if err != nil {
		glog.Infof("[st]login error = %s\n", err)
		return nil, err
	}
	self.session.SetToken(user.Token)
	self.session.SetUser(user)
	self.change()
	return user, nil
}

func (self *Store) Register(register *RegisterArgs) (*User, error) {
	user, err := self.api.RegisterSync(register)
	if err != nil {
		glog.Infof("[st]register error = %s\n", err)
		return nil, err
	}
	self.session.SetToken(user.Token)
	self.session.SetUser(user)
	self.change()
	return user, nil
}

func (self *Store) FetchCurrentUser() (*User, error) {
	user, err := self.api.CurrentUserSync()
	if err != nil {
		glog.Infof("[st]current user error = %s\n", err)
		return nil, err
	}
	self.session.SetUser(user)
	self.change()
	return user, nil
}

func (self *Store) Logout() {
	self.session.Clear()
	self.change()
}

func (self *Store) Close() {
	self.CloseChannel()
	self.cancel()
}
