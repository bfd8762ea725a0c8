// Package tfmodel TensorFlow SavedModel 기반 backbone
package tfmodel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	tf "github.com/wamuir/graft/tensorflow"
)

// Backbone SavedModel의 특징 추출 연산
type Backbone struct {
	tfModel *tf.SavedModel
	input   tf.Output
	output  tf.Output
}

// Open model.BackboneOpener 구현
func Open(dir string, cfg model.Config) (model.Backbone, error) {
	var (
		tfModel *tf.SavedModel
		input   tf.Output
		output  tf.Output
		err     error
	)

	if tfModel, err = tf.LoadSavedModel(dir, cfg.Tags, nil); err != nil {
		return nil, err
	}

	if input, err = lookup(tfModel.Graph, cfg.InputOperationName); err != nil {
		tfModel.Session.Close()
		return nil, err
	}
	if output, err = lookup(tfModel.Graph, cfg.OutputOperationName); err != nil {
		tfModel.Session.Close()
		return nil, err
	}

	return &Backbone{
		tfModel: tfModel,
		input:   input,
		output:  output,
	}, nil
}

// lookup "operation" 또는 "operation:index" 형식의 출력 조회
func lookup(graph *tf.Graph, name string) (tf.Output, error) {
	idx := 0
	if i := strings.LastIndex(name, ":"); i >= 0 {
		n, err := strconv.Atoi(name[i+1:])
		if err != nil {
			return tf.Output{}, fmt.Errorf("Invalid operation name: %s", name)
		}
		name, idx = name[:i], n
	}

	op := graph.Operation(name)
	if op == nil {
		return tf.Output{}, fmt.Errorf("No such operation: %s", name)
	}
	if idx >= op.NumOutputs() {
		return tf.Output{}, fmt.Errorf("No such output: %s:%d", name, idx)
	}
	return op.Output(idx), nil
}

// Features [N, H, W, 3] 배치를 backbone에 통과시킨 특징 벡터
func (b *Backbone) Features(images []preprocess.Image) ([][]float32, error) {
	var (
		input   *tf.Tensor
		results []*tf.Tensor
		err     error
	)

	if input, err = tf.NewTensor(batch(images)); err != nil {
		return nil, err
	}

	if results, err = b.tfModel.Session.Run(
		map[tf.Output]*tf.Tensor{
			b.input: input,
		},
		[]tf.Output{
			b.output,
		},
		nil,
	); err != nil {
		return nil, err
	}

	switch v := results[0].Value().(type) {
	case [][]float32:
		return v, nil
	case [][][][]float32:
		// pooling 되지 않은 특징맵은 평탄화
		out := make([][]float32, len(v))
		for n, fm := range v {
			for _, row := range fm {
				for _, col := range row {
					out[n] = append(out[n], col...)
				}
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Unsupported backbone output: %v %v",
			results[0].DataType(), results[0].Shape())
	}
}

func batch(images []preprocess.Image) [][][][]float32 {
	out := make([][][][]float32, len(images))
	for n, img := range images {
		out[n] = make([][][]float32, img.Height)
		for y := 0; y < img.Height; y++ {
			out[n][y] = make([][]float32, img.Width)
			for x := 0; x < img.Width; x++ {
				i := (y*img.Width + x) * 3
				out[n][y][x] = img.Data[i : i+3 : i+3]
			}
		}
	}
	return out
}

// Close 세션 해제
func (b *Backbone) Close() error {
	return b.tfModel.Session.Close()
}
