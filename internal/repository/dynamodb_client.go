package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"deals-agent/internal/domain"
)

const (
	pkCatalog = "CATALOG"
	pkShopper = "SHOPPER#default"

	skPrefixOffer    = "OFFER#"
	skPrefixPurchase = "PURCHASE#"
	skPrefixClip     = "CLIP#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client wraps a single DynamoDB table holding the offer catalog, purchase
// history, and clip acknowledgement records.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// ListOffers queries the whole catalog. Expiry filtering is the caller's job;
// the unfiltered snapshot is returned in sort-key order.
func (c *Client) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	out, err := c.queryPrefix(ctx, pkCatalog, skPrefixOffer)
	if err != nil {
		return nil, fmt.Errorf("repository: ListOffers query: %w", err)
	}

	offers := make([]domain.Offer, 0, len(out))
	for _, item := range out {
		offer, err := itemToOffer(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListOffers unmarshal: %w", err)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// ListPurchases queries the shopper's purchase history in sort-key order.
func (c *Client) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	out, err := c.queryPrefix(ctx, pkShopper, skPrefixPurchase)
	if err != nil {
		return nil, fmt.Errorf("repository: ListPurchases query: %w", err)
	}

	purchases := make([]domain.Purchase, 0, len(out))
	for _, item := range out {
		p, err := itemToPurchase(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPurchases unmarshal: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, nil
}

// Clip acknowledges a clip by writing the shopper's clip record. The put is
// unconditional so a repeated clip of the same offer stays idempotent.
func (c *Client) Clip(ctx context.Context, offerID string) error {
	if strings.TrimSpace(offerID) == "" {
		return errors.New("repository: Clip: offer id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":      &types.AttributeValueMemberS{Value: pkShopper},
			"SK":      &types.AttributeValueMemberS{Value: skPrefixClip + offerID},
			"offerId": &types.AttributeValueMemberS{Value: offerID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Clip: %w", err)
	}
	return nil
}

// Unclip acknowledges removal by deleting the shopper's clip record.
func (c *Client) Unclip(ctx context.Context, offerID string) error {
	if strings.TrimSpace(offerID) == "" {
		return errors.New("repository: Unclip: offer id is required")
	}
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkShopper},
			"SK": &types.AttributeValueMemberS{Value: skPrefixClip + offerID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Unclip: %w", err)
	}
	return nil
}

func (c *Client) queryPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}
	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// OfferItem converts an offer to its DynamoDB attribute map, used by catalog
// seeding tooling.
func OfferItem(o domain.Offer) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: pkCatalog},
		"SK":          &types.AttributeValueMemberS{Value: skPrefixOffer + o.ID},
		"offerId":     &types.AttributeValueMemberS{Value: o.ID},
		"merchant":    &types.AttributeValueMemberS{Value: o.Merchant},
		"category":    &types.AttributeValueMemberS{Value: string(o.Category)},
		"deal":        &types.AttributeValueMemberS{Value: o.Deal},
		"price":       &types.AttributeValueMemberS{Value: o.Price},
		"description": &types.AttributeValueMemberS{Value: o.Description},
		"expiry":      &types.AttributeValueMemberS{Value: o.Expiry},
		"image":       &types.AttributeValueMemberS{Value: o.Image},
	}
	if o.OriginalPrice != "" {
		item["originalPrice"] = &types.AttributeValueMemberS{Value: o.OriginalPrice}
	}
	if o.UsageInfo != "" {
		item["usageInfo"] = &types.AttributeValueMemberS{Value: o.UsageInfo}
	}
	return item
}

func itemToOffer(item map[string]types.AttributeValue) (domain.Offer, error) {
	id, err := strAttr(item, "offerId")
	if err != nil {
		return domain.Offer{}, err
	}
	category, err := strAttr(item, "category")
	if err != nil {
		return domain.Offer{}, err
	}
	deal, err := strAttr(item, "deal")
	if err != nil {
		return domain.Offer{}, err
	}
	price, err := strAttr(item, "price")
	if err != nil {
		return domain.Offer{}, err
	}
	expiry, err := strAttr(item, "expiry")
	if err != nil {
		return domain.Offer{}, err
	}
	// Remaining attributes may be absent on older catalog rows.
	merchant, _ := strAttr(item, "merchant")
	description, _ := strAttr(item, "description")
	originalPrice, _ := strAttr(item, "originalPrice")
	usageInfo, _ := strAttr(item, "usageInfo")
	image, _ := strAttr(item, "image")

	return domain.Offer{
		ID:            id,
		Merchant:      merchant,
		Category:      domain.Department(category),
		Deal:          deal,
		Price:         price,
		OriginalPrice: originalPrice,
		Description:   description,
		Expiry:        expiry,
		Image:         image,
		UsageInfo:     usageInfo,
	}, nil
}

func itemToPurchase(item map[string]types.AttributeValue) (domain.Purchase, error) {
	id, err := strAttr(item, "purchaseId")
	if err != nil {
		return domain.Purchase{}, err
	}
	name, err := strAttr(item, "item")
	if err != nil {
		return domain.Purchase{}, err
	}
	merchant, _ := strAttr(item, "merchant")
	date, _ := strAttr(item, "date")
	price, _ := strAttr(item, "price")
	category, _ := strAttr(item, "category")

	return domain.Purchase{
		ID:       id,
		Item:     name,
		Merchant: merchant,
		Date:     date,
		Price:    price,
		Category: domain.Department(category),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
