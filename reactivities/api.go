package reactivities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

// reads the bearer token on demand. empty means unauthenticated.
type TokenFunc func() string

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// stateless gateway to the activities service. no caching here.
type Api struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	token TokenFunc
}

func NewApi(apiUrl string, token TokenFunc) *Api {
	return NewApiWithContext(context.Background(), apiUrl, token)
}

func NewApiWithContext(ctx context.Context, apiUrl string, token TokenFunc) *Api {
	cancelCtx, cancel := context.WithCancel(ctx)

	if token == nil {
		token = func() string {
			return ""
		}
	}

	return &Api{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: apiUrl,
		token:  token,
	}
}

func (self *Api) Close() {
	self.cancel()
}

type ListActivitiesCallback apiCallback[*ActivityEnvelope]

// `query` carries limit/offset and the active predicate, see `Pagination.Query`
func (self *Api) ListActivities(query url.Values, callback ListActivitiesCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/activities?%s", self.apiUrl, query.Encode()),
		self.token(),
		&ActivityEnvelope{},
		callback,
	)
}

func (self *Api) ListActivitiesSync(query url.Values) (*ActivityEnvelope, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/activities?%s", self.apiUrl, query.Encode()),
		self.token(),
		&ActivityEnvelope{},
		NewNoopApiCallback[*ActivityEnvelope](),
	)
}

type GetActivityCallback apiCallback[*Activity]

func (self *Api) GetActivity(activityId Id, callback GetActivityCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/activities/%s", self.apiUrl, activityId),
		self.token(),
		&Activity{},
		callback,
	)
}

func (self *Api) GetActivitySync(activityId Id) (*Activity, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/activities/%s", self.apiUrl, activityId),
		self.token(),
		&Activity{},
		NewNoopApiCallback[*Activity](),
	)
}

type EmptyResult struct{}

type EmptyCallback apiCallback[*EmptyResult]

func (self *Api) CreateActivity(activity *Activity, callback EmptyCallback) {
	go request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/activities", self.apiUrl),
		activity,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) CreateActivitySync(activity *Activity) error {
	_, err := request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/activities", self.apiUrl),
		activity,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

func (self *Api) UpdateActivity(activity *Activity, callback EmptyCallback) {
	go request(
		self.ctx,
		"PUT",
		fmt.Sprintf("%s/activities/%s", self.apiUrl, activity.Id),
		activity,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) UpdateActivitySync(activity *Activity) error {
	_, err := request(
		self.ctx,
		"PUT",
		fmt.Sprintf("%s/activities/%s", self.apiUrl, activity.Id),
		activity,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

func (self *Api) DeleteActivity(activityId Id, callback EmptyCallback) {
	go request(
		self.ctx,
		"DELETE",
		fmt.Sprintf("%s/activities/%s", self.apiUrl, activityId),
		nil,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) DeleteActivitySync(activityId Id) error {
	_, err := request(
		self.ctx,
		"DELETE",
		fmt.Sprintf("%s/activities/%s", self.apiUrl, activityId),
		nil,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

func (self *Api) Attend(activityId Id, callback EmptyCallback) {
	go request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/activities/%s/attend", self.apiUrl, activityId),
		nil,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) AttendSync(activityId Id) error {
	_, err := request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/activities/%s/attend", self.apiUrl, activityId),
		nil,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

func (self *Api) Unattend(activityId Id, callback EmptyCallback) {
	go request(
		self.ctx,
		"DELETE",
		fmt.Sprintf("%s/activities/%s/attend", self.apiUrl, activityId),
		nil,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) UnattendSync(activityId Id) error {
	_, err := request(
		self.ctx,
		"DELETE",
		fmt.Sprintf("%s/activities/%s/attend", self.apiUrl, activityId),
		nil,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

type LoginCallback apiCallback[*User]

type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (self *Api) Login(login *LoginArgs, callback LoginCallback) {
	go request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/user/login", self.apiUrl),
		login,
		self.token(),
		&User{},
		callback,
	)
}

func (self *Api) LoginSync(login *LoginArgs) (*User, error) {
	return request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/user/login", self.apiUrl),
		login,
		self.token(),
		&User{},
		NewNoopApiCallback[*User](),
	)
}

type RegisterCallback apiCallback[*User]

type RegisterArgs struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (self *Api) Register(register *RegisterArgs, callback RegisterCallback) {
	go request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/user/register", self.apiUrl),
		register,
		self.token(),
		&User{},
		callback,
	)
}

func (self *Api) RegisterSync(register *RegisterArgs) (*User, error) {
	return request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/user/register", self.apiUrl),
		register,
		self.token(),
		&User{},
		NewNoopApiCallback[*User](),
	)
}

type CurrentUserCallback apiCallback[*User]

func (self *Api) CurrentUser(callback CurrentUserCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/user", self.apiUrl),
		self.token(),
		&User{},
		callback,
	)
}

func (self *Api) CurrentUserSync() (*User, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/user", self.apiUrl),
		self.token(),
		&User{},
		NewNoopApiCallback[*User](),
	)
}

type GetProfileCallback apiCallback[*Profile]

func (self *Api) GetProfile(username string, callback GetProfileCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/profiles/%s", self.apiUrl, username),
		self.token(),
		&Profile{},
		callback,
	)
}

func (self *Api) GetProfileSync(username string) (*Profile, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/profiles/%s", self.apiUrl, username),
		self.token(),
		&Profile{},
		NewNoopApiCallback[*Profile](),
	)
}

// edits the profile of the authenticated user
func (self *Api) UpdateProfile(profile *ProfileArgs, callback EmptyCallback) {
	go request(
		self.ctx,
		"PUT",
		fmt.Sprintf("%s/profiles", self.apiUrl),
		profile,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) UpdateProfileSync(profile *ProfileArgs) error {
	_, err := request(
		self.ctx,
		"PUT",
		fmt.Sprintf("%s/profiles", self.apiUrl),
		profile,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

func (self *Api) Follow(username string, callback EmptyCallback) {
	go request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/profiles/%s/follow", self.apiUrl, username),
		nil,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) FollowSync(username string) error {
	_, err := request(
		self.ctx,
		"POST",
		fmt.Sprintf("%s/profiles/%s/follow", self.apiUrl, username),
		nil,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

func (self *Api) Unfollow(username string, callback EmptyCallback) {
	go request(
		self.ctx,
		"DELETE",
		fmt.Sprintf("%s/profiles/%s/follow", self.apiUrl, username),
		nil,
		self.token(),
		&EmptyResult{},
		callback,
	)
}

func (self *Api) UnfollowSync(username string) error {
	_, err := request(
		self.ctx,
		"DELETE",
		fmt.Sprintf("%s/profiles/%s/follow", self.apiUrl, username),
		nil,
		self.token(),
		&EmptyResult{},
		NewNoopApiCallback[*EmptyResult](),
	)
	return err
}

type ListFollowingsCallback apiCallback[[]*Profile]

// `predicate` is `followers` or `following`
func (self *Api) ListFollowings(username string, predicate string, callback ListFollowingsCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/profiles/%s/follow?predicate=%s", self.apiUrl, username, url.QueryEscape(predicate)),
		self.token(),
		[]*Profile{},
		callback,
	)
}

func (self *Api) ListFollowingsSync(username string, predicate string) ([]*Profile, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/profiles/%s/follow?predicate=%s", self.apiUrl, username, url.QueryEscape(predicate)),
		self.token(),
		[]*Profile{},
		NewNoopApiCallback[[]*Profile](),
	)
}

func get[R any](ctx context.Context, url string, token string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "GET", url, nil, token, result, callback)
}

func request[R any](ctx context.Context, method string, url string, args any, token string, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")

	if token != "" {
		auth := fmt.Sprintf("Bearer %s", token)
		req.Header.Add("Authorization", auth)
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		// no response received
		apiErr := &ApiError{
			Message: err.Error(),
		}
		var empty R
		callback.Result(empty, apiErr)
		return empty, apiErr
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	if r.StatusCode < 200 || 300 <= r.StatusCode {
		apiErr := parseApiError(r.StatusCode, responseBodyBytes)
		callback.Result(result, apiErr)
		return result, apiErr
	}

	if 0 < len(responseBodyBytes) {
		err = json.Unmarshal(responseBodyBytes, &result)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	callback.Result(result, nil)
	return result, nil
}

// the service responds with either a problem document carrying field errors
// or a plain message body
func parseApiError(statusCode int, responseBodyBytes []byte) *ApiError {
	apiErr := &ApiError{
		StatusCode: statusCode,
	}

	var problem struct {
		Title   string              `json:"title"`
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(responseBodyBytes, &problem); err == nil {
		apiErr.FieldErrors = problem.Errors
		if problem.Message != "" {
			apiErr.Message = problem.Message
		} else {
			apiErr.Message = problem.Title
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(responseBodyBytes))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}
