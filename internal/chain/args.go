package chain

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CoerceArgs converts resolved argument values into the Go types the ABI
// encoder expects for the given constructor inputs. Literal values arrive
// as strings; resolved references arrive as common.Address.
func CoerceArgs(inputs abi.Arguments, args []any) ([]any, error) {
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("constructor expects %d arguments, got %d", len(inputs), len(args))
	}
	out := make([]any, len(args))
	for i, in := range inputs {
		v, err := coerce(in.Type, args[i])
		if err != nil {
			name := in.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, in.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		switch x := v.(type) {
		case common.Address:
			return x, nil
		case string:
			if !common.IsHexAddress(x) {
				return nil, fmt.Errorf("%q is not a hex address", x)
			}
			return common.HexToAddress(x), nil
		}
	case abi.BoolTy:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(x))
		}
	case abi.StringTy:
		switch x := v.(type) {
		case string:
			return x, nil
		case common.Address:
			return x.Hex(), nil
		}
	case abi.IntTy, abi.UintTy:
		return coerceInt(t, v)
	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	case abi.BytesTy:
		return toBytes(v)
	default:
		return nil, fmt.Errorf("unsupported constructor argument type")
	}
	return nil, fmt.Errorf("cannot use %T value", v)
}

func coerceInt(t abi.Type, v any) (any, error) {
	var n *big.Int
	switch x := v.(type) {
	case *big.Int:
		n = new(big.Int).Set(x)
	case string:
		var ok bool
		n, ok = new(big.Int).SetString(strings.ReplaceAll(strings.TrimSpace(x), "_", ""), 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", x)
		}
	default:
		return nil, fmt.Errorf("cannot use %T value", v)
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for uint%d", n, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s out of range for int%d", n, t.Size)
		}
	}

	// only 8/16/32/64-bit sizes map to native Go integers
	rt := t.GetType()
	if rt.Kind() == reflect.Ptr {
		return n, nil
	}
	rv := reflect.New(rt).Elem()
	if t.T == abi.UintTy {
		rv.SetUint(n.Uint64())
	} else {
		rv.SetInt(n.Int64())
	}
	return rv.Interface(), nil
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		b, err := hexutil.Decode(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("%q is not 0x-prefixed hex: %w", x, err)
		}
		return b, nil
	case common.Address:
		return x.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot use %T value", v)
}
