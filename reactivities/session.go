package reactivities

import (
	"database/sql"
	"sync"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/golang/glog"

	_ "github.com/mattn/go-sqlite3"
)

type SessionChangeFunction = func(token string)

// identity/session collaborator. the store reads the current user and
// the bearer token on demand and never persists them itself.
type Session interface {
	Token() string
	SetToken(token string)
	Clear()
	User() *User
	SetUser(user *User)
	AddChangeCallback(changeCallback SessionChangeFunction) func()
}

// best effort user identity out of the token claims.
// the token is not verified here, the server remains the authority.
func userFromToken(token string) *User {
	if token == "" {
		return nil
	}

	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		glog.Infof("[ses]token parse error = %s\n", err)
		return nil
	}

	claims := parsed.Claims.(gojwt.MapClaims)

	user := &User{
		Token: token,
	}
	if username, ok := claims["username"]; ok {
		user.Username, _ = username.(string)
	}
	// asp.net identity puts the username in the name identifier claim
	if user.Username == "" {
		if nameId, ok := claims["nameid"]; ok {
			user.Username, _ = nameId.(string)
		}
	}
	if displayName, ok := claims["displayName"]; ok {
		user.DisplayName, _ = displayName.(string)
	}
	if image, ok := claims["image"]; ok {
		user.Image, _ = image.(string)
	}
	if user.Username == "" {
		return nil
	}
	return user
}

type MemorySession struct {
	stateLock sync.Mutex

	token string
	user  *User

	changeCallbacks *CallbackList[SessionChangeFunction]
}

func NewMemorySession() *MemorySession {
	return &MemorySession{
		changeCallbacks: NewCallbackList[SessionChangeFunction](),
	}
}

func (self *MemorySession) AddChangeCallback(changeCallback SessionChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *MemorySession) change(token string) {
	for _, callback := range self.changeCallbacks.Get() {
		callback(token)
	}
}

func (self *MemorySession) Token() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.token
}

func (self *MemorySession) SetToken(token string) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.token = token
		// the cached user belongs to the previous token
		self.user = nil
	}()
	self.change(token)
}

func (self *MemorySession) Clear() {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.token = ""
		self.user = nil
	}()
	self.change("")
}

func (self *MemorySession) User() *User {
	self.stateLock.Lock()
	user := self.user
	token := self.token
	self.stateLock.Unlock()

	if user != nil {
		return user
	}
	return userFromToken(token)
}

func (self *MemorySession) SetUser(user *User) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.user = user
}

// persists the token across runs the way the browser app keeps its jwt
// in session storage
type SqliteSession struct {
	stateLock sync.Mutex

	db   *sql.DB
	user *User

	changeCallbacks *CallbackList[SessionChangeFunction]
}

func NewSqliteSession(path string) (*SqliteSession, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SqliteSession{
		db:              db,
		changeCallbacks: NewCallbackList[SessionChangeFunction](),
	}, nil
}

func (self *SqliteSession) Close() error {
	return self.db.Close()
}

func (self *SqliteSession) AddChangeCallback(changeCallback SessionChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *SqliteSession) change(token string) {
	for _, callback := range self.changeCallbacks.Get() {
		callback(token)
	}
}

func (self *SqliteSession) Token() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	var token string
	err := self.db.QueryRow(`SELECT token FROM session WHERE id = 1`).Scan(&token)
	if err != nil {
		if err != sql.ErrNoRows {
			glog.Infof("[ses]token read error = %s\n", err)
		}
		return ""
	}
	return token
}

func (self *SqliteSession) SetToken(token string) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		// the cached user belongs to the previous token
		self.user = nil
		_, err := self.db.Exec(
			`INSERT INTO session (id, token) VALUES (1, ?)
				ON CONFLICT (id) DO UPDATE SET token = excluded.token`,
			token,
		)
		if err != nil {
			glog.Infof("[ses]token write error = %s\n", err)
		}
	}()
	self.change(token)
}

func (self *SqliteSession) Clear() {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		self.user = nil
		if _, err := self.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
			glog.Infof("[ses]token clear error = %s\n", err)
		}
	}()
	self.change("")
}

func (self *SqliteSession) User() *User {
	self.stateLock.Lock()
	user := self.user
	self.stateLock.Unlock()

	if user != nil {
		return user
	}
	return userFromToken(self.Token())
}

func (self *SqliteSession) SetUser(user *User) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.user = user
}
