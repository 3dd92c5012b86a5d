package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

// nodeMarker is the zero-byte object that records a leaf node's existence,
// so a node with no published items is still distinguishable from no node.
const nodeMarker = ".node"

// MinioPubSub persists PEP leaf nodes as content-addressed objects:
// pep/<bare-jid>/<escaped-ns>/<item-id>.xml with the payload XML as body.
type MinioPubSub struct {
	client *minio.Client
	bucket string
}

func NewMinioPubSub(client *minio.Client, bucket string) *MinioPubSub {
	return &MinioPubSub{client: client, bucket: bucket}
}

// EnsureBucket creates the backing bucket when absent.
func (s *MinioPubSub) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioPubSub) GetNode(ctx context.Context, owner xmpp.JID, ns string) (Node, error) {
	node := Node{Owner: owner, NS: ns}
	_, err := s.client.StatObject(ctx, s.bucket, s.markerKey(node), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Node{}, ErrNodeNotFound
		}
		return Node{}, fmt.Errorf("stat node marker: %w", err)
	}
	return node, nil
}

func (s *MinioPubSub) CreateLeafNode(ctx context.Context, owner xmpp.JID, ns string) (Node, error) {
	node := Node{Owner: owner, NS: ns}
	_, err := s.client.PutObject(ctx, s.bucket, s.markerKey(node),
		bytes.NewReader(nil), 0, minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return Node{}, fmt.Errorf("create node %s: %w", ns, err)
	}
	return node, nil
}

func (s *MinioPubSub) Items(ctx context.Context, node Node) ([]Item, error) {
	prefix := s.nodePrefix(node)
	var items []Item
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list items: %w", obj.Err)
		}
		name := path.Base(obj.Key)
		if name == nodeMarker {
			continue
		}
		payload, err := s.readPayload(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			ID:      strings.TrimSuffix(name, ".xml"),
			Payload: payload,
		})
	}
	return items, nil
}

func (s *MinioPubSub) PublishSingleItem(ctx context.Context, node Node, id string, payload *xmpp.Element) error {
	if err := s.DeleteAllItems(ctx, node); err != nil {
		return err
	}
	body := []byte(payload.XML())
	_, err := s.client.PutObject(ctx, s.bucket, s.itemKey(node, id),
		bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{ContentType: "application/xml"})
	if err != nil {
		return fmt.Errorf("publish item %s: %w", id, err)
	}
	return nil
}

func (s *MinioPubSub) DeleteAllItems(ctx context.Context, node Node) error {
	prefix := s.nodePrefix(node)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return fmt.Errorf("list items: %w", obj.Err)
		}
		if path.Base(obj.Key) == nodeMarker {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete item %s: %w", obj.Key, err)
		}
	}
	return nil
}

func (s *MinioPubSub) RemoveNode(ctx context.Context, node Node) error {
	if err := s.DeleteAllItems(ctx, node); err != nil {
		return err
	}
	err := s.client.RemoveObject(ctx, s.bucket, s.markerKey(node), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove node %s: %w", node.NS, err)
	}
	return nil
}

func (s *MinioPubSub) readPayload(ctx context.Context, key string) (*xmpp.Element, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read item %s: %w", key, err)
	}
	el, err := xmpp.ParseElement(data)
	if err != nil {
		return nil, fmt.Errorf("parse item %s: %w", key, err)
	}
	return el, nil
}

func (s *MinioPubSub) nodePrefix(node Node) string {
	return path.Join("pep", node.Owner.Bare(), url.PathEscape(node.NS)) + "/"
}

func (s *MinioPubSub) itemKey(node Node, id string) string {
	return s.nodePrefix(node) + id + ".xml"
}

func (s *MinioPubSub) markerKey(node Node) string {
	return s.nodePrefix(node) + nodeMarker
}
