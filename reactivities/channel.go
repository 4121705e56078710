package reactivities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/golang/glog"
)

type ChannelSettings struct {
	WsHandshakeTimeout time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	PingTimeout        time.Duration
}

func DefaultChannelSettings() *ChannelSettings {
	return &ChannelSettings{
		WsHandshakeTimeout: 5 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        30 * time.Second,
		PingTimeout:        10 * time.Second,
	}
}

type CommentFunction = func(comment *Comment)

// push channel bound to one activity at a time
type Channel interface {
	AddCommentCallback(commentCallback CommentFunction) func()
	SendComment(body string) error
	Close()
}

type ChannelDialFunc = func(ctx context.Context, activityId Id) (Channel, error)

func NewChannelDialer(chatUrl string, token TokenFunc, settings *ChannelSettings) ChannelDialFunc {
	return func(ctx context.Context, activityId Id) (Channel, error) {
		return DialCommentChannel(ctx, chatUrl, activityId, token, settings)
	}
}

// hub frames are json, `{"target": ..., "arguments": [...]}`
type channelFrame struct {
	Target    string            `json:"target"`
	Arguments []json.RawMessage `json:"arguments"`
}

type invokeFrame struct {
	Target    string `json:"target"`
	Arguments []any  `json:"arguments"`
}

type commentPayload struct {
	ActivityId Id     `json:"activityId"`
	Body       string `json:"body"`
}

const targetReceiveComment = "ReceiveComment"
const targetSend = "Send"
const targetAddToGroup = "AddToGroup"
const targetRemoveFromGroup = "RemoveFromGroup"
const targetSendComment = "SendComment"

type CommentChannel struct {
	ctx    context.Context
	cancel context.CancelFunc

	activityId Id
	ws         *websocket.Conn

	settings *ChannelSettings

	// gorilla allows one concurrent writer
	writeLock sync.Mutex

	commentCallbacks *CallbackList[CommentFunction]

	closeOnce sync.Once
}

// dials the hub, authenticates with the session token, and joins the
// server-side group for the activity. comments submitted here come back
// through the inbound event path, the channel never mutates local state.
func DialCommentChannel(
	ctx context.Context,
	chatUrl string,
	activityId Id,
	token TokenFunc,
	settings *ChannelSettings,
) (*CommentChannel, error) {
	wsUrl := fmt.Sprintf(
		"%s?%s",
		chatUrl,
		url.Values{
			"access_token": []string{token()},
		}.Encode(),
	)

	dialer := &websocket.Dialer{
		HandshakeTimeout: settings.WsHandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, wsUrl, nil)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	channel := &CommentChannel{
		ctx:              cancelCtx,
		cancel:           cancel,
		activityId:       activityId,
		ws:               ws,
		settings:         settings,
		commentCallbacks: NewCallbackList[CommentFunction](),
	}

	if err := channel.invoke(targetAddToGroup, activityId.String()); err != nil {
		cancel()
		ws.Close()
		return nil, err
	}

	go channel.run()

	return channel, nil
}

func (self *CommentChannel) ActivityId() Id {
	return self.activityId
}

func (self *CommentChannel) AddCommentCallback(commentCallback CommentFunction) func() {
	callbackId := self.commentCallbacks.Add(commentCallback)
	return func() {
		self.commentCallbacks.Remove(callbackId)
	}
}

func (self *CommentChannel) invoke(target string, args ...any) error {
	self.writeLock.Lock()
	defer self.writeLock.Unlock()

	self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	return self.ws.WriteJSON(&invokeFrame{
		Target:    target,
		Arguments: args,
	})
}

func (self *CommentChannel) SendComment(body string) error {
	return self.invoke(targetSendComment, &commentPayload{
		ActivityId: self.activityId,
		Body:       body,
	})
}

func (self *CommentChannel) run() {
	defer self.Close()

	self.ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
	self.ws.SetPongHandler(func(string) error {
		self.ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		return nil
	})

	go func() {
		for {
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.PingTimeout):
				deadline := time.Now().Add(self.settings.WriteTimeout)
				if err := self.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					glog.V(2).Infof("[ch]ping %s error = %s\n", self.activityId, err)
					return
				}
			}
		}
	}()

	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		var frame channelFrame
		if err := self.ws.ReadJSON(&frame); err != nil {
			glog.Infof("[chr]%s<- error = %s\n", self.activityId, err)
			return
		}

		switch frame.Target {
		case targetReceiveComment:
			if len(frame.Arguments) < 1 {
				glog.Infof("[chr]%s<- comment event missing payload\n", self.activityId)
				continue
			}
			comment := &Comment{}
			if err := json.Unmarshal(frame.Arguments[0], comment); err != nil {
				glog.Infof("[chr]%s<- comment decode error = %s\n", self.activityId, err)
				continue
			}
			glog.V(2).Infof("[chr]%s<- comment\n", self.activityId)
			for _, callback := range self.commentCallbacks.Get() {
				callback(comment)
			}
		case targetSend:
			// informational broadcast from the hub
			for _, argument := range frame.Arguments {
				glog.Infof("[chr]%s<- %s\n", self.activityId, string(argument))
			}
		default:
			glog.V(2).Infof("[chr]%s<- other=%s\n", self.activityId, frame.Target)
		}
	}
}

// leaves the group then closes. both best effort.
func (self *CommentChannel) Close() {
	self.closeOnce.Do(func() {
		if err := self.invoke(targetRemoveFromGroup, self.activityId.String()); err != nil {
			glog.Infof("[ch]leave group %s error = %s\n", self.activityId, err)
		}
		self.cancel()
		self.ws.Close()
	})
}
