package transport

import "testing"

func TestMemoryLinkPublishAndPoll(t *testing.T) {
	link := NewMemoryLink("test", 4)
	pub := link.Publication()
	sub := link.Subscription()

	claim, ok := pub.TryClaim(5)
	if !ok {
		t.Fatal("expected claim to succeed")
	}
	copy(claim.Bytes(), []byte("hello"))
	if err := claim.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var got []byte
	n := sub.Poll(func(data []byte, flag FragmentFlag) {
		got = data
		if flag != FragUnfragmented {
			t.Errorf("expected FragUnfragmented, got %v", flag)
		}
	}, 10)
	if n != 1 {
		t.Fatalf("expected 1 delivered, got %d", n)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestMemoryLinkBackPressure(t *testing.T) {
	link := NewMemoryLink("test", 1)
	pub := link.Publication()

	claim, ok := pub.TryClaim(1)
	if !ok {
		t.Fatal("expected first claim to succeed")
	}
	_ = claim.Commit()

	if _, ok := pub.TryClaim(1); ok {
		t.Fatal("expected second claim to report back-pressure at capacity 1")
	}
}

func TestMemoryLinkAbortDoesNotEnqueue(t *testing.T) {
	link := NewMemoryLink("test", 4)
	pub := link.Publication()
	sub := link.Subscription()

	claim, ok := pub.TryClaim(3)
	if !ok {
		t.Fatal("expected claim to succeed")
	}
	if err := claim.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}

	n := sub.Poll(func(data []byte, flag FragmentFlag) {
		t.Error("handler should not be called: nothing was committed")
	}, 10)
	if n != 0 {
		t.Fatalf("expected 0 delivered after abort, got %d", n)
	}
}

func TestMemoryLinkOfferNotConnected(t *testing.T) {
	link := NewMemoryLink("test", 4)
	link.SetConnected(false)
	pub := link.Publication()

	if res := pub.Offer([][]byte{[]byte("x")}); res != OfferNotConnected {
		t.Errorf("Offer() = %v, want OfferNotConnected", res)
	}
	if _, ok := pub.TryClaim(1); ok {
		t.Error("expected TryClaim to fail while disconnected")
	}
}

func TestMemoryLinkOfferBackPressure(t *testing.T) {
	link := NewMemoryLink("test", 1)
	pub := link.Publication()

	if res := pub.Offer([][]byte{[]byte("a")}); res != OfferSuccess {
		t.Fatalf("first offer = %v, want OfferSuccess", res)
	}
	if res := pub.Offer([][]byte{[]byte("b")}); res != OfferBackPressure {
		t.Errorf("second offer = %v, want OfferBackPressure", res)
	}
}

func TestMemoryLinkOfferJoinsFragments(t *testing.T) {
	link := NewMemoryLink("test", 4)
	pub := link.Publication()
	sub := link.Subscription()

	pub.Offer([][]byte{[]byte("foo"), []byte("bar")})

	var got []byte
	sub.Poll(func(data []byte, flag FragmentFlag) { got = data }, 1)
	if string(got) != "foobar" {
		t.Errorf("got %q, want %q", got, "foobar")
	}
}

func TestMemoryLinkPollRespectsLimit(t *testing.T) {
	link := NewMemoryLink("test", 10)
	pub := link.Publication()
	sub := link.Subscription()

	for i := 0; i < 5; i++ {
		pub.Offer([][]byte{[]byte("x")})
	}
	n := sub.Poll(func(data []byte, flag FragmentFlag) {}, 3)
	if n != 3 {
		t.Fatalf("expected 3 delivered respecting limit, got %d", n)
	}
	remaining := sub.Poll(func(data []byte, flag FragmentFlag) {}, 10)
	if remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", remaining)
	}
}

func TestSetLookupOutOfRange(t *testing.T) {
	s := &Set{}
	if _, err := s.Publication(1); err == nil {
		t.Error("expected error for out-of-range publication index")
	}
	if _, err := s.Subscription(1); err == nil {
		t.Error("expected error for out-of-range subscription index")
	}

	link := NewMemoryLink("p", 1)
	s.Pub = append(s.Pub, link.Publication())
	if _, err := s.Publication(1); err != nil {
		t.Errorf("expected index 1 to resolve, got %v", err)
	}
	if _, err := s.Publication(0); err == nil {
		t.Error("expected index 0 to be out of range (1-based)")
	}
}
