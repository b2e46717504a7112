package player

import "testing"

type recordingListener struct {
	got []SecurityViolation
}

func (l *recordingListener) OnSecurityViolation(v SecurityViolation) {
	l.got = append(l.got, v)
}

func TestSecurityObserver_dispatch(t *testing.T) {
	o := NewSecurityObserver()
	a := &recordingListener{}
	b := &recordingListener{}
	o.Subscribe(a)
	o.Subscribe(b)

	o.Dispatch(SecurityViolation{ViolatedDirective: "media-src", BlockedURI: "blob:x"})

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("both listeners should receive the event: a=%d b=%d", len(a.got), len(b.got))
	}
}

func TestSecurityObserver_unsubscribe_leaves_others(t *testing.T) {
	o := NewSecurityObserver()
	a := &recordingListener{}
	b := &recordingListener{}
	unsubA := o.Subscribe(a)
	o.Subscribe(b)

	unsubA()
	o.Dispatch(SecurityViolation{ViolatedDirective: "media-src", BlockedURI: "blob:x"})

	if len(a.got) != 0 {
		t.Errorf("unsubscribed listener received %d events", len(a.got))
	}
	if len(b.got) != 1 {
		t.Errorf("remaining listener should still receive events, got %d", len(b.got))
	}
	if o.ListenerCount() != 1 {
		t.Errorf("ListenerCount = %d, want 1", o.ListenerCount())
	}
}

func TestSecurityObserver_unsubscribe_idempotent(t *testing.T) {
	o := NewSecurityObserver()
	unsub := o.Subscribe(&recordingListener{})
	unsub()
	unsub()
	if o.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", o.ListenerCount())
	}
}
