// Package kafka connects pipeflow to Kafka for publishing execution
// transitions.
//
// Config carries broker, TLS and SASL settings. CreateTransport and
// CreateDialer turn it into kafka-go connection primitives, the producer
// subpackage writes messages with retries, and Component owns the producer's
// lifecycle inside a component.Registry.
//
//	kafka:
//	  brokers: ["localhost:9092"]
//	  topic: "pipeflow.transitions"
//	  compression: "snappy"
package kafka
