package notify

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hubAddr = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"

func testIntent(t *testing.T) intentdomain.PaymentIntent {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return intentdomain.PaymentIntent{
		ID:     node.Generate(),
		Status: intentdomain.StatusCompleted,
		From:   hubAddr,
	}
}

func TestPublishToSubscriber(t *testing.T) {
	hub := NewHub(nil)

	sub, err := hub.Subscribe(hubAddr)
	require.NoError(t, err)
	defer sub.Close()

	want := testIntent(t)
	// Address lookup is case-insensitive.
	hub.Publish("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", want)

	select {
	case got := <-sub.Events():
		assert.Equal(t, want.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a live update")
	}
}

func TestPublishWithoutSubscriberIsDropped(t *testing.T) {
	hub := NewHub(nil)
	// Must not panic or block.
	hub.Publish(hubAddr, testIntent(t))
}

func TestResubscribeEvictsPrior(t *testing.T) {
	hub := NewHub(nil)

	first, err := hub.Subscribe(hubAddr)
	require.NoError(t, err)

	second, err := hub.Subscribe(hubAddr)
	require.NoError(t, err)
	defer second.Close()

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first subscription should be evicted")
	}

	want := testIntent(t)
	hub.Publish(hubAddr, want)

	select {
	case got := <-second.Events():
		assert.Equal(t, want.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("second subscription should receive updates")
	}

	select {
	case <-first.Events():
		t.Fatal("evicted subscription should not receive updates")
	default:
	}
}

func TestCloseRemovesSubscription(t *testing.T) {
	hub := NewHub(nil)

	sub, err := hub.Subscribe(hubAddr)
	require.NoError(t, err)
	sub.Close()
	sub.Close() // idempotent

	hub.Publish(hubAddr, testIntent(t))
	select {
	case <-sub.Events():
		t.Fatal("closed subscription should not receive updates")
	default:
	}
}

func TestSubscribeInvalidAddress(t *testing.T) {
	hub := NewHub(nil)
	_, err := hub.Subscribe("   ")
	assert.Error(t, err)
}
