package cache

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// recordVersion 标识磁盘/内存记录的 schema，变更格式即令旧缓存失效。
const recordVersion = 2

// record 是 Asset 的显式序列化形式，使用整数键保持编码紧凑。
type record struct {
	Version    uint   `cbor:"1,keyasint"`
	Identifier string `cbor:"2,keyasint"`
	Payload    []byte `cbor:"3,keyasint"`
	// 过期时间拆为秒与纳秒两部分，UnixNano 无法表示 2262 年之后的时间。
	ExpiresSec  *int64 `cbor:"4,keyasint,omitempty"`
	ExpiresNsec int64  `cbor:"5,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// EncodeAsset 将 Asset 编码为带版本号的 CBOR 记录。
func EncodeAsset(a Asset) ([]byte, error) {
	rec := record{
		Version:    recordVersion,
		Identifier: a.Identifier,
		Payload:    a.Payload,
	}
	if a.ExpiresAt != nil {
		sec := a.ExpiresAt.Unix()
		rec.ExpiresSec = &sec
		rec.ExpiresNsec = int64(a.ExpiresAt.Nanosecond())
	}
	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode asset: %w", err)
	}
	return data, nil
}

// DecodeAsset 解码 EncodeAsset 的输出；版本不符的记录视为 ErrNotFound。
func DecodeAsset(data []byte) (Asset, error) {
	var rec record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return Asset{}, fmt.Errorf("decode asset: %w", err)
	}
	if rec.Version != recordVersion {
		return Asset{}, fmt.Errorf("record version %d: %w", rec.Version, ErrNotFound)
	}
	asset := Asset{
		Identifier: rec.Identifier,
		Payload:    rec.Payload,
	}
	if asset.Payload == nil {
		asset.Payload = []byte{}
	}
	if rec.ExpiresSec != nil {
		if rec.ExpiresNsec < 0 || rec.ExpiresNsec >= int64(time.Second) {
			return Asset{}, fmt.Errorf("decode asset: expiry nanoseconds %d out of range", rec.ExpiresNsec)
		}
		expiry := time.Unix(*rec.ExpiresSec, rec.ExpiresNsec)
		asset.ExpiresAt = &expiry
	}
	return asset, nil
}
