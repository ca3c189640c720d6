package postersync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

const pubSubDedupTTL = 24 * time.Hour

func PublishSyncRun(ctx context.Context, runId uint, connectionId uint) error {
	topicName := strings.TrimSpace(os.Getenv("POSTER_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "poster-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if utils.EnvBoolDefault("POSTER_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{
		RunId:        runId,
		ConnectionId: connectionId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.EnvBoolDefault("ENABLE_POSTER_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 {
			c.Status(204)
			return
		}
		if messageSeen(envelope.Message.ID) {
			c.Status(204)
			return
		}

		if err := processSyncRun(c.Request.Context(), payload); err != nil {
			config.LogError(config.GetLogger(), "postersync", "PubSubPushHandler", "processSyncRun", payload, err)
		} else {
			markMessageSeen(envelope.Message.ID)
		}
		c.Status(204)
	}
}

// Push subscriptions redeliver on timeouts even after the run finished; the
// message id marker short-circuits those without touching the run row.
func messageSeen(messageId string) bool {
	if messageId == "" {
		return false
	}
	var seen bool
	ok, err := config.GetRedisObject("posterSyncMsg:"+messageId, &seen)
	return err == nil && ok && seen
}

func markMessageSeen(messageId string) {
	if messageId == "" {
		return
	}
	_ = config.SetRedisObject("posterSyncMsg:"+messageId, true, pubSubDedupTTL)
}
