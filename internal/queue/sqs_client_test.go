package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	sent []*sqs.SendMessageInput
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSendStandardQueue(t *testing.T) {
	api := &fakeSender{}
	client := newSQSClient(api, "https://sqs.us-east-1.amazonaws.com/123/notificaciones")

	msg := NewMessage(EventEnvioEnviado, "req-1")
	msg.HojaID = 5
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	in := api.sent[0]
	if aws.ToString(in.MessageAttributes["event"].StringValue) != EventEnvioEnviado {
		t.Fatalf("event attribute = %+v", in.MessageAttributes["event"])
	}
	if in.MessageGroupId != nil || in.MessageDeduplicationId != nil {
		t.Fatal("standard queues take no message group")
	}
	decoded, err := DecodeMessage([]byte(aws.ToString(in.MessageBody)))
	if err != nil || decoded.HojaID != 5 {
		t.Fatalf("body = %s (%v)", aws.ToString(in.MessageBody), err)
	}
}

func TestSQSSendFIFOGroupsByDocument(t *testing.T) {
	api := &fakeSender{}
	client := newSQSClient(api, "https://sqs.us-east-1.amazonaws.com/123/notificaciones.fifo")

	doc := NewMessage(EventEnvioEnviado, "")
	doc.HojaID = 9
	sweep := NewMessage(EventHojasVencimiento, "")
	for _, m := range []Message{doc, doc, sweep} {
		if err := client.Send(context.Background(), m); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if got := aws.ToString(api.sent[0].MessageGroupId); got != "hoja-9" {
		t.Fatalf("group = %q", got)
	}
	if aws.ToString(api.sent[0].MessageDeduplicationId) == aws.ToString(api.sent[1].MessageDeduplicationId) {
		t.Fatal("each send needs its own deduplication id")
	}
	if got := aws.ToString(api.sent[2].MessageGroupId); got != EventHojasVencimiento {
		t.Fatalf("sweep group = %q", got)
	}
}

func TestSQSSendWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	client := newSQSClient(&fakeSender{err: boom}, "https://sqs/q")
	if err := client.Send(context.Background(), NewMessage(EventEnvioEnviado, "")); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
