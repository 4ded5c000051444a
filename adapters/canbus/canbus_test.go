package canbus

import (
	"context"
	"testing"
)

type fakePublisher struct {
	topics []string
}

func (f *fakePublisher) PublishLocal(topicName string, payload []byte, qos uint8, retain bool) error {
	f.topics = append(f.topics, topicName)
	return nil
}

func TestSourceRunPublishesFrames(t *testing.T) {
	frames := make(chan Frame, 2)
	frames <- Frame{ID: 0x100, DLC: 2, Data: [8]byte{0x01, 0x02}}
	close(frames)

	src := &Source{TopicPrefix: "canbus/bus0", Frames: frames}
	pub := &fakePublisher{}

	if err := src.Run(context.Background(), pub); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "canbus/bus0/100" {
		t.Fatalf("got topics %v", pub.topics)
	}
}

func TestSourceNameAndCommandTopic(t *testing.T) {
	src := &Source{TopicPrefix: "canbus/bus0"}
	if src.Name() != "canbus" {
		t.Errorf("Name() = %q, want canbus", src.Name())
	}
	if src.CommandTopic() != "" {
		t.Errorf("CommandTopic() = %q, want empty", src.CommandTopic())
	}
}
