package model

import "time"

// ExpiryEstimation はAIによる期限推定の結果。
// 推定できなかった場合はDateがnilでConfidenceがnoneになる。
type ExpiryEstimation struct {
	Date       *time.Time
	Confidence Confidence
}

// IdentificationMethod は商品識別の手段。
type IdentificationMethod string

const (
	IdentificationBarcode IdentificationMethod = "barcode"
	IdentificationVisual  IdentificationMethod = "visual"
)

// ProductIdentification は画像・バーコードから識別した商品候補。
type ProductIdentification struct {
	Name              string
	Confidence        Confidence
	Method            IdentificationMethod
	SuggestedLocation *ProductLocation
	SuggestedQuantity *string
}

// ReceiptItem はレシートから読み取った1品目。
type ReceiptItem struct {
	Name       string
	Confidence Confidence
}
