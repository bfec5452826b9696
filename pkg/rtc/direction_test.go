package rtc_test

import (
	"errors"
	"testing"

	"github.com/mrsw/go-webrtc-interop/pkg/rtc"
)

func TestDirectionComponents(t *testing.T) {
	cases := []struct {
		dir  rtc.Direction
		send bool
		recv bool
	}{
		{rtc.DirectionSendRecv, true, true},
		{rtc.DirectionSendOnly, true, false},
		{rtc.DirectionRecvOnly, false, true},
		{rtc.DirectionInactive, false, false},
	}
	for _, c := range cases {
		if got := c.dir.Send(); got != c.send {
			t.Errorf("%s.Send() = %v; want %v", c.dir, got, c.send)
		}
		if got := c.dir.Recv(); got != c.recv {
			t.Errorf("%s.Recv() = %v; want %v", c.dir, got, c.recv)
		}
		if got := rtc.FromSendRecv(c.send, c.recv); got != c.dir {
			t.Errorf("FromSendRecv(%v, %v) = %s; want %s", c.send, c.recv, got, c.dir)
		}
	}
}

func TestDirectionReverse(t *testing.T) {
	cases := []struct {
		dir  rtc.Direction
		want rtc.Direction
	}{
		{rtc.DirectionSendRecv, rtc.DirectionSendRecv},
		{rtc.DirectionSendOnly, rtc.DirectionRecvOnly},
		{rtc.DirectionRecvOnly, rtc.DirectionSendOnly},
		{rtc.DirectionInactive, rtc.DirectionInactive},
	}
	for _, c := range cases {
		if got := c.dir.Reverse(); got != c.want {
			t.Errorf("%s.Reverse() = %s; want %s", c.dir, got, c.want)
		}
	}
}

func TestDirectionIntersect(t *testing.T) {
	cases := []struct {
		local  rtc.Direction
		remote rtc.Direction
		want   rtc.Direction
	}{
		{rtc.DirectionSendRecv, rtc.DirectionSendRecv, rtc.DirectionSendRecv},
		{rtc.DirectionSendRecv, rtc.DirectionSendOnly, rtc.DirectionRecvOnly},
		{rtc.DirectionSendRecv, rtc.DirectionRecvOnly, rtc.DirectionSendOnly},
		{rtc.DirectionSendRecv, rtc.DirectionInactive, rtc.DirectionInactive},
		{rtc.DirectionSendOnly, rtc.DirectionSendRecv, rtc.DirectionSendOnly},
		{rtc.DirectionSendOnly, rtc.DirectionSendOnly, rtc.DirectionInactive},
		{rtc.DirectionRecvOnly, rtc.DirectionSendOnly, rtc.DirectionRecvOnly},
		{rtc.DirectionInactive, rtc.DirectionSendRecv, rtc.DirectionInactive},
	}
	for _, c := range cases {
		if got := c.local.Intersect(c.remote); got != c.want {
			t.Errorf("%s.Intersect(%s) = %s; want %s", c.local, c.remote, got, c.want)
		}
	}
}

func TestOptionalDirection(t *testing.T) {
	if rtc.DirectionNotSet.IsSet() {
		t.Error("DirectionNotSet.IsSet() = true; want false")
	}
	if rtc.DirectionNotSet.Send() || rtc.DirectionNotSet.Recv() {
		t.Error("unset direction reports components")
	}
	if got := rtc.DirectionNotSet.String(); got != "notset" {
		t.Errorf("DirectionNotSet.String() = %q; want %q", got, "notset")
	}

	opt := rtc.DirectionSendOnly.Opt()
	if !opt.IsSet() {
		t.Error("Opt().IsSet() = false; want true")
	}
	if got := opt.Direction(); got != rtc.DirectionSendOnly {
		t.Errorf("Opt().Direction() = %s; want %s", got, rtc.DirectionSendOnly)
	}
	if !opt.Send() || opt.Recv() {
		t.Errorf("sendonly optional components = %v/%v; want true/false", opt.Send(), opt.Recv())
	}

	both := rtc.OptionalFromSendRecv(true, true)
	if both != rtc.OptionalSendRecv {
		t.Errorf("OptionalFromSendRecv(true, true) = %s; want %s", both, rtc.OptionalSendRecv)
	}
}

func TestNewDirection(t *testing.T) {
	for _, name := range []string{"sendrecv", "sendonly", "recvonly", "inactive"} {
		dir, err := rtc.NewDirection(name)
		if err != nil {
			t.Fatalf("NewDirection(%q) error: %v", name, err)
		}
		if got := dir.String(); got != name {
			t.Errorf("NewDirection(%q).String() = %q", name, got)
		}
	}
	if _, err := rtc.NewDirection("sideways"); !errors.Is(err, rtc.ErrInvalidParameter) {
		t.Errorf("NewDirection(sideways) error = %v; want ErrInvalidParameter", err)
	}
}
