package reactivities

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// in-process stand-in for the activities service
type testService struct {
	stateLock sync.Mutex

	activities map[Id]*Activity
	order      []Id

	profiles map[string]*Profile
	// follow lists keyed by username then predicate
	followLists map[string]map[string][]*Profile
	// whose profile a PUT /profiles edits, standing in for the
	// authenticated user
	profileUsername string

	listCount int
	getCount  int

	lastAuth string

	// when set, every request fails with this status and body
	failStatus int
	failBody   string

	// when set, called before a list response is written
	listGate func(r *http.Request)
	// when set, called before an attend/unattend response is written
	attendGate func(r *http.Request)

	server *httptest.Server
}

func newTestService() *testService {
	service := &testService{
		activities:  map[Id]*Activity{},
		profiles:    map[string]*Profile{},
		followLists: map[string]map[string][]*Profile{},
	}
	service.server = httptest.NewServer(http.HandlerFunc(service.handle))
	return service
}

func (self *testService) close() {
	self.server.Close()
}

func (self *testService) url() string {
	return self.server.URL
}

func (self *testService) add(activity *Activity) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if _, ok := self.activities[activity.Id]; !ok {
		self.order = append(self.order, activity.Id)
	}
	self.activities[activity.Id] = activity.Clone()
}

func (self *testService) get(activityId Id) *Activity {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if activity, ok := self.activities[activityId]; ok {
		return activity.Clone()
	}
	return nil
}

func (self *testService) addProfile(profile *Profile) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.profiles[profile.Username] = profile.Clone()
}

func (self *testService) profile(username string) *Profile {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if profile, ok := self.profiles[username]; ok {
		return profile.Clone()
	}
	return nil
}

func (self *testService) setFollowList(username string, predicate string, profiles []*Profile) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.followLists[username] == nil {
		self.followLists[username] = map[string][]*Profile{}
	}
	self.followLists[username][predicate] = profiles
}

func (self *testService) setProfileUsername(username string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.profileUsername = username
}

func (self *testService) setFailure(status int, body string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.failStatus = status
	self.failBody = body
}

func (self *testService) counts() (listCount int, getCount int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.listCount, self.getCount
}

func (self *testService) handle(w http.ResponseWriter, r *http.Request) {
	self.stateLock.Lock()
	self.lastAuth = r.Header.Get("Authorization")
	failStatus := self.failStatus
	failBody := self.failBody
	listGate := self.listGate
	attendGate := self.attendGate
	self.stateLock.Unlock()

	if failStatus != 0 {
		w.WriteHeader(failStatus)
		w.Write([]byte(failBody))
		return
	}

	if strings.HasPrefix(r.URL.Path, "/profiles") {
		self.handleProfiles(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/activities")

	if path == "" {
		switch r.Method {
		case "GET":
			self.stateLock.Lock()
			self.listCount += 1
			self.stateLock.Unlock()

			if listGate != nil {
				listGate(r)
			}

			category := r.URL.Query().Get("category")

			envelope := &ActivityEnvelope{
				Activities: []*Activity{},
			}
			self.stateLock.Lock()
			for _, activityId := range self.order {
				activity := self.activities[activityId]
				if category != "" && activity.Category != category {
					continue
				}
				envelope.Activities = append(envelope.Activities, activity.Clone())
			}
			self.stateLock.Unlock()
			envelope.ActivityCount = len(envelope.Activities)

			json.NewEncoder(w).Encode(envelope)
		case "POST":
			activity := &Activity{}
			if err := json.NewDecoder(r.Body).Decode(activity); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			self.add(activity)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	activityId, err := ParseId(parts[0])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "attend" {
		if attendGate != nil {
			attendGate(r)
		}
		self.stateLock.Lock()
		_, ok := self.activities[activityId]
		self.stateLock.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case "GET":
		self.stateLock.Lock()
		self.getCount += 1
		activity, ok := self.activities[activityId]
		self.stateLock.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(activity)
	case "PUT":
		activity := &Activity{}
		if err := json.NewDecoder(r.Body).Decode(activity); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		self.add(activity)
	case "DELETE":
		self.stateLock.Lock()
		delete(self.activities, activityId)
		for i, orderedId := range self.order {
			if orderedId == activityId {
				self.order = append(self.order[:i], self.order[i+1:]...)
				break
			}
		}
		self.stateLock.Unlock()
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (self *testService) handleProfiles(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/profiles")

	// PUT /profiles edits the authenticated user's own profile
	if path == "" {
		if r.Method != "PUT" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		args := &ProfileArgs{}
		if err := json.NewDecoder(r.Body).Decode(args); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		self.stateLock.Lock()
		if profile, ok := self.profiles[self.profileUsername]; ok {
			profile.DisplayName = args.DisplayName
			profile.Bio = args.Bio
		}
		self.stateLock.Unlock()
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	username := parts[0]

	if len(parts) == 2 && parts[1] == "follow" {
		switch r.Method {
		case "GET":
			predicate := r.URL.Query().Get("predicate")
			self.stateLock.Lock()
			list := self.followLists[username][predicate]
			self.stateLock.Unlock()

			profiles := []*Profile{}
			for _, profile := range list {
				profiles = append(profiles, profile.Clone())
			}
			json.NewEncoder(w).Encode(profiles)
		case "POST", "DELETE":
			self.stateLock.Lock()
			profile, ok := self.profiles[username]
			if ok {
				if r.Method == "POST" {
					profile.Following = true
					profile.FollowersCount += 1
				} else {
					profile.Following = false
					profile.FollowersCount -= 1
				}
			}
			self.stateLock.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	self.stateLock.Lock()
	profile, ok := self.profiles[username]
	if ok {
		profile = profile.Clone()
	}
	self.stateLock.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(profile)
}
