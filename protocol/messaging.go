package protocol

// OpDeliverMessage is the host operation under which inbound broker traffic
// is dispatched to a service.
const OpDeliverMessage = "DeliverMessage"

// BrokerMessage is a single message as seen on the bus: the subject it
// arrived on, the inbox to reply on (empty for fire-and-forget), and the
// encoded body record.
type BrokerMessage struct {
	Subject string `msgpack:"subject"`
	ReplyTo string `msgpack:"reply_to"`
	Body    []byte `msgpack:"body"`
}

// DeliverMessage is the envelope handed to a service for every inbound
// broker message.
type DeliverMessage struct {
	Message BrokerMessage `msgpack:"message"`
}
