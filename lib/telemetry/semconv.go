package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for blockpool telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name

const (
	// AttrPoolName labels pooled object metrics by logical store.
	AttrPoolName = attribute.Key("pool.name")
	// AttrObjectType captures the Go type being managed inside a store.
	AttrObjectType = attribute.Key("object.type")
	// AttrAllocationSource differentiates fresh construction from free-list reuse.
	AttrAllocationSource = attribute.Key("allocation.source")
	// AttrEnvironment specifies the deployment environment (dev/staging/prod).
	AttrEnvironment = attribute.Key("environment")
	// AttrResult records the outcome of an operation (pooled, discarded, ...).
	AttrResult = attribute.Key("result")
)

// PoolAttributes returns common attributes for store metrics.
func PoolAttributes(environment, pool, objectType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPoolName.String(pool),
		AttrObjectType.String(objectType),
	}
}

// attributesFromLabels maps the observability label vocabulary onto the
// registered attribute keys, falling back to raw keys for unknown labels.
func attributesFromLabels(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attributeKey(k).String(v))
	}
	return attrs
}

func attributeKey(label string) attribute.Key {
	switch label {
	case "pool":
		return AttrPoolName
	case "source":
		return AttrAllocationSource
	case "object_type":
		return AttrObjectType
	case "environment":
		return AttrEnvironment
	case "result":
		return AttrResult
	default:
		return attribute.Key(label)
	}
}
