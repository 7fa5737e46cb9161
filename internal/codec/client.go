package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region methods
// Full method names served by the inference sidecar. Requests and responses
// are google.protobuf.Struct documents.
const (
	MethodClassify = "/gaia.Inference/Classify"
	MethodEmbed    = "/gaia.Inference/Embed"
	MethodSearch   = "/gaia.Inference/Search"
)

// #endregion methods

// #region client-struct
// CodecClient wraps the gRPC connection to the Python inference service.
type CodecClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the Python inference gRPC server.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, cc: conn}, nil
}

// NewCodecClientWithConn creates a CodecClient over an injected connection.
// Used for testing without a real gRPC server.
func NewCodecClientWithConn(cc grpc.ClientConnInterface) *CodecClient {
	return &CodecClient{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection, if the client owns one.
func (c *CodecClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region call
func (c *CodecClient) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion call

// #region classify
// Classify asks the sidecar for an intent category and confidence. It
// satisfies signals.IntentClassifier.
func (c *CodecClient) Classify(ctx context.Context, message string, history []signals.Turn) (signals.IntentSignal, error) {
	turns := make([]any, len(history))
	for i, t := range history {
		turns[i] = map[string]any{"role": t.Role, "content": t.Content}
	}
	resp, err := c.call(ctx, MethodClassify, map[string]any{
		"message": message,
		"history": turns,
	})
	if err != nil {
		return signals.IntentSignal{}, fmt.Errorf("classify rpc: %w", err)
	}

	fields := resp.GetFields()
	sig := signals.IntentSignal{
		Category:        fields["category"].GetStringValue(),
		Confidence:      fields["confidence"].GetNumberValue(),
		ExplicitPersona: fields["explicit_persona"].GetStringValue(),
	}
	for _, v := range fields["rationale"].GetListValue().GetValues() {
		sig.Rationale = append(sig.Rationale, v.GetStringValue())
	}
	return sig, nil
}

// #endregion classify

// #region embed
// Embed sends text to the inference service for embedding. It satisfies
// matcher.Embedder.
func (c *CodecClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.call(ctx, MethodEmbed, map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	values := resp.GetFields()["embedding"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, fmt.Errorf("embed rpc: empty embedding")
	}
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v.GetNumberValue())
	}
	return out, nil
}

// #endregion embed

// #region search
// Search queries the sidecar's resource index, filtered by intent when set.
func (c *CodecClient) Search(ctx context.Context, query, intent string, topK int) ([]state.Citation, error) {
	resp, err := c.call(ctx, MethodSearch, map[string]any{
		"query":  query,
		"intent": intent,
		"top_k":  topK,
	})
	if err != nil {
		return nil, fmt.Errorf("search rpc: %w", err)
	}

	values := resp.GetFields()["results"].GetListValue().GetValues()
	results := make([]state.Citation, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		results = append(results, state.Citation{
			ID:        f["id"].GetStringValue(),
			Title:     f["title"].GetStringValue(),
			URL:       f["url"].GetStringValue(),
			Source:    f["source"].GetStringValue(),
			Snippet:   f["snippet"].GetStringValue(),
			Published: f["published"].GetStringValue(),
		})
	}
	return results, nil
}

// #endregion search
